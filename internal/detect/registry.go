package detect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"nfcexposure/internal/model"
)

var ErrUnknownVariant = errors.New("detect: unknown variant")

// Field positions of the polled signatures in a record, in polling order.
const (
	FieldTypeA = iota
	FieldTypeB
	FieldTypeF
)

const (
	selRes60  = "sel_res=60"
	sensfResp = "sensf_res"
)

// Registry maps every known variant to its detector. It is built once and only read afterwards.
type Registry struct {
	detectors map[model.Variant]model.Detector
}

func NewRegistry() *Registry {
	return &Registry{detectors: map[model.Variant]model.Detector{
		model.VariantA60:       typeASelRes60,
		model.VariantA60Always: typeASelRes60,
		model.VariantF:         typeFSensfRes,
		model.VariantHuaweiPay: never,
	}}
}

func (r *Registry) Lookup(v model.Variant) (model.Detector, error) {
	if r != nil {
		if d, ok := r.detectors[v]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownVariant, string(v), strings.Join(r.Variants(), ", "))
}

func (r *Registry) Variants() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.detectors))
	for v := range r.detectors {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}

// typeASelRes60 matches phones that answer a Type A poll with SEL_RES 0x60 while unlocked.
func typeASelRes60(rec model.DetectionRecord) bool {
	return strings.Contains(rec.Field(FieldTypeA), selRes60)
}

// typeFSensfRes matches phones that only answer a FeliCa poll while unlocked.
func typeFSensfRes(rec model.DetectionRecord) bool {
	return strings.Contains(rec.Field(FieldTypeF), sensfResp)
}

// never stands in for wallet-capable phones; their readings are not analysed.
func never(model.DetectionRecord) bool {
	return false
}
