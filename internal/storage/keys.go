package storage

import (
	"fmt"

	"github.com/embell139/prep-ILAMB/internal/model"
)

// SourceCatchCN prefixes every object produced from Catchment-CN output.
const SourceCatchCN = "catchcn"

type ObjectKey struct {
	Source string
	Period model.Period
	RunID  model.RunID
	Name   string // output file base name, e.g. "x.monthly.200001-ILAMB.nc"
}

func (k ObjectKey) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Source, k.Period, k.RunID, k.Name)
}
