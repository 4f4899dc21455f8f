package scenarios

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-scenarios/layering"
)

// OverrideCatalog holds the named override fragments of a study, keyed by
// (planning_year, axis, value). It is immutable once built and safe to share
// across goroutines.
type OverrideCatalog struct {
	years     map[int]*catalogSection
	yearOrder []int
	allYears  *catalogSection
	effective map[int]*catalogSection
}

type catalogSection struct {
	axes   []string
	values map[string]*axisValues
}

type axisValues struct {
	names     []string
	fragments map[string]layering.Node
}

func newCatalogSection() *catalogSection {
	return &catalogSection{values: map[string]*axisValues{}}
}

func (s *catalogSection) put(axis, value string, fragment layering.Node) {
	entry, ok := s.values[axis]
	if !ok {
		entry = &axisValues{fragments: map[string]layering.Node{}}
		s.values[axis] = entry
		s.axes = append(s.axes, axis)
	}
	if _, exists := entry.fragments[value]; !exists {
		entry.names = append(entry.names, value)
	}
	entry.fragments[value] = fragment
}

func (s *catalogSection) get(axis, value string) (layering.Node, bool) {
	if s == nil {
		return layering.Null(), false
	}
	entry, ok := s.values[axis]
	if !ok {
		return layering.Null(), false
	}
	fragment, ok := entry.fragments[value]
	return fragment, ok
}

// CatalogBuilder accumulates fragments before producing an OverrideCatalog.
type CatalogBuilder struct {
	years    map[int]*catalogSection
	allYears *catalogSection
	errs     []error
}

// NewCatalogBuilder returns an empty builder.
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{years: map[int]*catalogSection{}}
}

// Register adds the fragment for (year, axis, value). Use AllYears to register
// a fragment applying to every planning year. Registering the same key twice
// replaces the earlier fragment. Fragments must be mappings.
func (b *CatalogBuilder) Register(year int, axis, value string, fragment layering.Node) *CatalogBuilder {
	key := FragmentKey{PlanningYear: year, Axis: axis, Value: value}
	switch {
	case strings.TrimSpace(axis) == "":
		b.errs = append(b.errs, &SchemaError{Param: key.String(), Reason: "has an empty axis name"})
		return b
	case strings.TrimSpace(value) == "":
		b.errs = append(b.errs, &SchemaError{Param: key.String(), Reason: "has an empty value name"})
		return b
	case !fragment.IsMapping():
		b.errs = append(b.errs, &SchemaError{Param: key.String(), Reason: fmt.Sprintf("must be a mapping, got %s", fragment.Kind())})
		return b
	}
	b.section(year).put(axis, value, fragment.Clone())
	return b
}

func (b *CatalogBuilder) section(year int) *catalogSection {
	if year == AllYears {
		if b.allYears == nil {
			b.allYears = newCatalogSection()
		}
		return b.allYears
	}
	section, ok := b.years[year]
	if !ok {
		section = newCatalogSection()
		b.years[year] = section
	}
	return section
}

// Build validates the registered fragments and freezes them into a catalog.
func (b *CatalogBuilder) Build() (*OverrideCatalog, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	catalog := &OverrideCatalog{
		years:     b.years,
		allYears:  b.allYears,
		effective: make(map[int]*catalogSection, len(b.years)),
	}
	for year := range b.years {
		catalog.yearOrder = append(catalog.yearOrder, year)
	}
	sort.Ints(catalog.yearOrder)
	for _, year := range catalog.yearOrder {
		catalog.effective[year] = combineSections(b.allYears, b.years[year])
	}
	b.years = map[int]*catalogSection{}
	b.allYears = nil
	return catalog, nil
}

// combineSections overlays a year section on the all_years section. Axis
// order is all_years axes first, then axes first declared by the year.
func combineSections(all, year *catalogSection) *catalogSection {
	out := newCatalogSection()
	for _, section := range []*catalogSection{all, year} {
		if section == nil {
			continue
		}
		for _, axis := range section.axes {
			entry := section.values[axis]
			for _, value := range entry.names {
				fragment := entry.fragments[value]
				if existing, ok := out.get(axis, value); ok {
					fragment = layering.Merge(existing, fragment)
				}
				out.put(axis, value, fragment)
			}
		}
	}
	return out
}

// CatalogFromNode builds a catalog from a settings section shaped as
// {year: {axis: {value: {param: value}}}}. The all_years key holds fragments
// applying to every year. A null node yields an empty catalog.
func CatalogFromNode(node layering.Node) (*OverrideCatalog, error) {
	builder := NewCatalogBuilder()
	if node.IsNull() {
		return builder.Build()
	}
	if !node.IsMapping() {
		return nil, &SchemaError{Param: DefaultCatalogKey, Reason: fmt.Sprintf("must be a mapping, got %s", node.Kind())}
	}
	for _, yearKey := range node.Keys() {
		year, err := parseCatalogYear(yearKey)
		if err != nil {
			return nil, err
		}
		yearNode, _ := node.Get(yearKey)
		if yearNode.IsNull() {
			continue
		}
		if !yearNode.IsMapping() {
			return nil, &SchemaError{Param: yearKey, Reason: "must map axis names to values"}
		}
		for _, axis := range yearNode.Keys() {
			axisNode, _ := yearNode.Get(axis)
			if axisNode.IsNull() {
				continue
			}
			if !axisNode.IsMapping() {
				return nil, &SchemaError{Param: layering.JoinPath(yearKey, axis), Reason: "must map value names to fragments"}
			}
			for _, value := range axisNode.Keys() {
				fragment, _ := axisNode.Get(value)
				builder.Register(year, axis, value, fragment)
			}
		}
	}
	return builder.Build()
}

func parseCatalogYear(key string) (int, error) {
	if key == AllYearsKey {
		return AllYears, nil
	}
	year, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || year <= 0 {
		return 0, &SchemaError{Param: key, Reason: "is not a planning year or " + AllYearsKey}
	}
	return year, nil
}

// Years returns the planning years with their own catalog section, ascending.
func (c *OverrideCatalog) Years() []int {
	if c == nil {
		return nil
	}
	return append([]int(nil), c.yearOrder...)
}

// HasYear reports whether year has its own catalog section.
func (c *OverrideCatalog) HasYear(year int) bool {
	if c == nil {
		return false
	}
	_, ok := c.years[year]
	return ok
}

func (c *OverrideCatalog) sectionFor(year int) *catalogSection {
	if c == nil {
		return nil
	}
	if section, ok := c.effective[year]; ok {
		return section
	}
	return c.allYears
}

// Axes returns the axes applying to year in declaration order.
func (c *OverrideCatalog) Axes(year int) []string {
	section := c.sectionFor(year)
	if section == nil {
		return nil
	}
	return append([]string(nil), section.axes...)
}

// Values returns the value names declared for axis in year.
func (c *OverrideCatalog) Values(year int, axis string) []string {
	section := c.sectionFor(year)
	if section == nil {
		return nil
	}
	entry, ok := section.values[axis]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.names...)
}

// Fragment returns a copy of the effective fragment for (year, axis, value):
// the all_years fragment overlaid with the year's own fragment.
func (c *OverrideCatalog) Fragment(year int, axis, value string) (layering.Node, bool) {
	fragment, ok := c.fragment(year, axis, value)
	if !ok {
		return layering.Null(), false
	}
	return fragment.Clone(), true
}

func (c *OverrideCatalog) fragment(year int, axis, value string) (layering.Node, bool) {
	return c.sectionFor(year).get(axis, value)
}

// AxisDeclared reports whether axis appears in any catalog section.
func (c *OverrideCatalog) AxisDeclared(axis string) bool {
	if c == nil {
		return false
	}
	if c.allYears != nil {
		if _, ok := c.allYears.values[axis]; ok {
			return true
		}
	}
	for _, section := range c.years {
		if _, ok := section.values[axis]; ok {
			return true
		}
	}
	return false
}

// ValueDeclared reports whether value matches a fragment of axis in any
// catalog section.
func (c *OverrideCatalog) ValueDeclared(axis, value string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.allYears.get(axis, value); ok {
		return true
	}
	for _, section := range c.years {
		if _, ok := section.get(axis, value); ok {
			return true
		}
	}
	return false
}

// Each visits every registered fragment as declared, all_years first and
// then years ascending. Visiting stops when fn returns false. Fragments are
// shared with the catalog and must not be modified.
func (c *OverrideCatalog) Each(fn func(FragmentKey, layering.Node) bool) {
	if c == nil || fn == nil {
		return
	}
	visit := func(year int, section *catalogSection) bool {
		if section == nil {
			return true
		}
		for _, axis := range section.axes {
			entry := section.values[axis]
			for _, value := range entry.names {
				key := FragmentKey{PlanningYear: year, Axis: axis, Value: value}
				if !fn(key, entry.fragments[value]) {
					return false
				}
			}
		}
		return true
	}
	if !visit(AllYears, c.allYears) {
		return
	}
	for _, year := range c.yearOrder {
		if !visit(year, c.years[year]) {
			return
		}
	}
}

// Len returns the number of registered fragments.
func (c *OverrideCatalog) Len() int {
	count := 0
	c.Each(func(FragmentKey, layering.Node) bool {
		count++
		return true
	})
	return count
}
