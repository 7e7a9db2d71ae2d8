package test

import (
	"encoding/json"
	"os"
)

func LoadFixture(relativePath string) ([]byte, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(wd + string(os.PathSeparator) + relativePath)
}

func LoadFixtureInto(relativePath string, target interface{}) error {
	data, err := LoadFixture(relativePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
