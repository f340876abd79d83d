package model

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

const gcsScheme = "gs://"

// artifactFile is the on-disk layout. YAML and JSON are both accepted.
//
//	type: forest
//	features: [year, month, ..., Santiago, Temuco]
//	cities: [Santiago, Temuco]
//	params: {n_features: 17, trees: [...]}
type artifactFile struct {
	Type     string         `yaml:"type"`
	Features []string       `yaml:"features"`
	Cities   []string       `yaml:"cities"`
	Params   map[string]any `yaml:"params"`
}

// Load reads an artifact from a local path or a gs://bucket/object URL. opts configure the
// storage client and are ignored for local paths.
func Load(ctx context.Context, path string, opts ...option.ClientOption) (*Artifact, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(path, gcsScheme) {
		data, err = readGCS(ctx, path, opts...)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}

	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	return a, nil
}

// Parse decodes and validates an artifact document.
func Parse(data []byte) (*Artifact, error) {
	var f artifactFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Features) == 0 {
		return nil, fmt.Errorf("artifact lists no features")
	}
	if err := checkCities(f.Cities, f.Features); err != nil {
		return nil, err
	}

	var (
		p        Predictor
		validate func(int) error
	)
	switch f.Type {
	case "linear":
		m := &Linear{}
		if err := decodeParams(f.Params, m); err != nil {
			return nil, err
		}
		p, validate = m, m.validate
	case "forest", "random_forest":
		m := &Forest{}
		if err := decodeParams(f.Params, m); err != nil {
			return nil, err
		}
		p, validate = m, m.validate
	default:
		return nil, fmt.Errorf("unsupported model type %q", f.Type)
	}

	if err := validate(len(f.Features)); err != nil {
		return nil, err
	}

	return &Artifact{
		Type:      f.Type,
		Features:  f.Features,
		Cities:    f.Cities,
		Predictor: p,
	}, nil
}

// checkCities requires every listed city to have an indicator column among features.
func checkCities(cities, features []string) error {
	columns := make(map[string]struct{}, len(features))
	for _, name := range features {
		columns[name] = struct{}{}
	}
	var missing []string
	for _, city := range cities {
		if _, ok := columns[city]; !ok {
			missing = append(missing, city)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("artifact cities have no feature column: %s", strings.Join(missing, ", "))
	}
	return nil
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

func readGCS(ctx context.Context, url string, opts ...option.ClientOption) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(url, gcsScheme), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("invalid gcs url %q", url)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
