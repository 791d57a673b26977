package input

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReadMountPlan decodes a YAML mount plan. Unknown keys are an error.
func ReadMountPlan(r io.Reader) (*MountPlan, error) {
	plan := &MountPlan{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty mount plan")
		}
		return nil, errors.Wrapf(err, "error decoding mount plan")
	}
	return plan, nil
}

func ReadMountPlanFile(filename string) (*MountPlan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", filename)
	}
	return ReadMountPlan(bytes.NewReader(data))
}
