package rpc

import (
	"encoding/json"
	"os"
)

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "eunomia-instance-apply-*.tar.gz")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeTemp(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
