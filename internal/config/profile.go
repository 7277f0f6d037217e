package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// Profile is a named set of AERONET queries sharing client defaults.
//
//	base_url: https://aeronet.gsfc.nasa.gov/cgi-bin/print_web_data_v3
//	defaults:
//	  site: Cart_Site
//	  AVG: 20
//	queries:
//	  june-aod:
//	    options: {year: 2000, month: 6, day: 1, year2: 2000, month2: 6, day2: 14, AOD20: true}
//	    cache: cache/cart_site_aod20.csv
//	    add_utc: true
type Profile struct {
	BaseURL  string
	Defaults aeronet.Options
	Queries  map[string]Query
}

// Query is one entry of a profile.
type Query struct {
	Options aeronet.Options
	Cache   string
	AddUTC  bool
	AddLST  bool
}

// TableParams converts the query's output settings.
func (q Query) TableParams() aeronet.TableParams {
	return aeronet.TableParams{CachePath: q.Cache, AddUTC: q.AddUTC, AddLST: q.AddLST}
}

type profileFile struct {
	BaseURL  string               `yaml:"base_url"`
	Defaults map[string]any       `yaml:"defaults"`
	Queries  map[string]queryFile `yaml:"queries"`
}

type queryFile struct {
	Options map[string]any `yaml:"options"`
	Cache   string         `yaml:"cache"`
	AddUTC  bool           `yaml:"add_utc"`
	AddLST  bool           `yaml:"add_lst"`
}

// LoadProfile reads a YAML profile. Option keys are checked against the
// known AERONET parameters; required parameters are checked at request time.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML profile document.
func ParseProfile(data []byte) (*Profile, error) {
	var raw profileFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	defaults, err := toOptions(raw.Defaults)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	if _, err := aeronet.ValidateOptions(defaults, nil, false); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	p := &Profile{
		BaseURL:  raw.BaseURL,
		Defaults: defaults,
		Queries:  make(map[string]Query, len(raw.Queries)),
	}

	for name, q := range raw.Queries {
		opts, err := toOptions(q.Options)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", name, err)
		}
		if _, err := aeronet.ValidateOptions(defaults, opts, false); err != nil {
			return nil, fmt.Errorf("query %q: %w", name, err)
		}
		p.Queries[name] = Query{
			Options: opts,
			Cache:   q.Cache,
			AddUTC:  q.AddUTC,
			AddLST:  q.AddLST,
		}
	}

	return p, nil
}

// Query returns the named query.
func (p *Profile) Query(name string) (Query, error) {
	q, ok := p.Queries[name]
	if !ok {
		return Query{}, fmt.Errorf("unknown query %q (have: %v)", name, p.QueryNames())
	}
	return q, nil
}

// QueryNames returns the query names in sorted order.
func (p *Profile) QueryNames() []string {
	names := make([]string, 0, len(p.Queries))
	for name := range p.Queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toOptions converts YAML scalars to query-string text. true becomes "1"
// and false or null drops the key.
func toOptions(raw map[string]any) (aeronet.Options, error) {
	opts := make(aeronet.Options, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case bool:
			if v {
				opts[key] = "1"
			}
		case int:
			opts[key] = strconv.Itoa(v)
		case uint64:
			opts[key] = strconv.FormatUint(v, 10)
		case float64:
			opts[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case string:
			opts[key] = v
		default:
			return nil, fmt.Errorf("option %q: unsupported value of type %T", key, value)
		}
	}
	return opts, nil
}
