package params

import (
	"fmt"
	"io"
	"os"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/confkit"
)

// LoadConfig reads a parameter file. Keys absent from the file keep their
// Defaults value.
func LoadConfig(path string) (*Parameters, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open params config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads etc/params.yaml from the project root and panics on error.
func MustLoad() *Parameters {
	p, err := LoadConfig(confkit.MustProjectPath("etc/params.yaml"))
	if err != nil {
		panic(err)
	}
	return p
}

// LoadConfigFromReader decodes parameters from r on top of Defaults.
func LoadConfigFromReader(r io.Reader) (*Parameters, error) {
	p := Defaults()
	if err := confkit.DecodeYAML(r, p); err != nil {
		return nil, fmt.Errorf("unmarshal params config: %w", err)
	}
	p.Normalize()
	for _, w := range p.Lint() {
		logx.Infof("params config: %s", w)
	}
	return p, nil
}
