package evaluation

import (
	"sort"
	"strings"
	"time"
)

// OtherRegion is assigned to stores missing from the region table.
const OtherRegion = "Other"

// AllRegions is the filter sentinel that disables region filtering.
const AllRegions = "All"

// HourLabelLayout formats the hour label dimension.
const HourLabelLayout = "15:04"

// RegionTable maps store names to their region.
type RegionTable struct {
	stores map[string]string
	names  []string
}

// NewRegionTable builds a table from region → stores. A store listed under
// several regions keeps the first region in sorted region order.
func NewRegionTable(regions map[string][]string) *RegionTable {
	names := make([]string, 0, len(regions))
	for region := range regions {
		names = append(names, region)
	}
	sort.Strings(names)

	t := &RegionTable{stores: make(map[string]string), names: names}
	for _, region := range names {
		for _, store := range regions[region] {
			store = strings.TrimSpace(store)
			if _, exists := t.stores[store]; !exists {
				t.stores[store] = region
			}
		}
	}
	return t
}

// DefaultRegions returns the RJ and SP store groupings.
func DefaultRegions() *RegionTable {
	return NewRegionTable(DefaultRegionStores())
}

// DefaultRegionStores returns the raw region → stores mapping behind DefaultRegions.
func DefaultRegionStores() map[string][]string {
	return map[string][]string{
		"RJ": {"Carioca", "Santa Cruz", "Mesquita", "Nilópolis", "Madureira", "Bonsucesso"},
		"SP": {"Taboão", "São Bernardo", "Santo André", "Mauá", "MDC São Mateus", "CDM São Mateus"},
	}
}

// Lookup returns the region of store, or OtherRegion.
func (t *RegionTable) Lookup(store string) string {
	if t == nil {
		return OtherRegion
	}
	if region, ok := t.stores[strings.TrimSpace(store)]; ok {
		return region
	}
	return OtherRegion
}

// Regions lists the configured region names in sorted order.
func (t *RegionTable) Regions() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Enrich attaches the store, region and time dimensions to records in place.
func Enrich(records []Record, store string, regions *RegionTable) {
	region := regions.Lookup(store)
	for i := range records {
		r := &records[i]
		r.Store = store
		r.Region = region
		r.Day, r.HourLabel, r.Hour = nil, "", nil
		if !r.HasDate() {
			continue
		}
		d := *r.Date
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		hour := d.Hour()
		r.Day = &day
		r.HourLabel = d.Format(HourLabelLayout)
		r.Hour = &hour
	}
}
