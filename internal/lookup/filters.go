package lookup

import (
	"strings"
	"time"

	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/internal/filter"
	"github.com/arkilian/rangelookup/pkg/types"
)

// Priorities relative to the configured base.
const (
	dateFilterOffset    = 48
	rowDecodeOffset     = 50
	compositeSeekOffset = 51
	timeoutOffset       = 100
)

// FilterPlan is what a lookup installs on its scan session.
type FilterPlan struct {
	// Descriptors in ascending priority order.
	Descriptors []filter.Descriptor

	// SessionBudget is the store-side session time limit. Zero means none.
	SessionBudget time.Duration
}

// Has reports whether the plan contains a descriptor of kind k.
func (p FilterPlan) Has(k filter.Kind) bool {
	for _, d := range p.Descriptors {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// AssembleFilters builds the filter stack for a lookup of rng.
func AssembleFilters(cfg *config.LookupConfig, rng types.LiteralRange, window DateWindow, maxLookup time.Duration) FilterPlan {
	base := cfg.BaseIteratorPriority
	var descs []filter.Descriptor

	dates := filter.NewDescriptor(base+dateFilterOffset, "DateFilter", filter.KindDateRange)
	dates.AddOption(filter.OptionRange, filter.EncodeQualifierRange(filter.QualifierRange{
		Start:          window.BeginDay,
		End:            window.endOfDay(),
		StartInclusive: true,
		EndInclusive:   true,
	}))
	descs = append(descs, dates)

	descs = append(descs, filter.NewDescriptor(base+rowDecodeOffset, "WholeRow", filter.KindRowDecode))

	if sep := compositeSeparator(cfg.CompositeFields, cfg.CompositeSeparators, rng); sep != "" {
		components := cfg.CompositeFields[rng.Field]
		seek := filter.NewDescriptor(base+compositeSeekOffset, "CompositeSeek", filter.KindCompositeSeek)
		seek.AddOption(filter.OptionComponentFields, strings.Join(components, ","))
		for _, c := range components {
			if typ, ok := cfg.DiscreteIndexTypes[c]; ok {
				seek.AddOption(c+filter.DiscreteIndexTypeSuffix, typ)
			}
		}
		seek.AddOption(filter.OptionSeparator, sep)
		descs = append(descs, seek)
	}

	plan := FilterPlan{}
	if maxLookup > 0 {
		descs = append(descs, filter.NewDescriptor(base+timeoutOffset, "Timeout", filter.KindTimeout))
		plan.SessionBudget = sessionBudget(maxLookup)
	}
	plan.Descriptors = filter.SortByPriority(descs)
	return plan
}
