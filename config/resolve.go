package config

import (
	"os"
	"strings"

	"github.com/habiliai/docstore/errors"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

func resolveConfig[T any](config *T, testing bool) error {
	if config == nil {
		return errors.New("config is nil")
	}

	var files []string
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		files = append(files, ".env")
	}
	if testing {
		filename := ".env.test"
		if v := os.Getenv("ENV_TEST_FILE"); v != "" {
			filename = v
		}
		if _, err := os.Stat(filename); !os.IsNotExist(err) {
			files = append(files, filename)
		}
	}

	values := map[string]string{}
	for _, file := range files {
		fileValues, err := godotenv.Read(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", file)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			values[k] = v
		}
	}

	return decodeEnv(values, config)
}

func decodeEnv(values map[string]string, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "env",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create config decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "failed to load config: %v", err)
	}
	return nil
}
