package aeronet

import (
	"net/url"
	"sort"
	"strconv"
)

// Options maps AERONET query parameter names to their query-string value.
// Keys are case-sensitive.
type Options map[string]string

// Required parameters. AVG falls back to DefaultAVG when no layer sets it.
const (
	OptAVG   = "AVG"
	OptYear  = "year"
	OptMonth = "month"
	OptDay   = "day"
)

// OptNoHTML asks the service for plain-text errors instead of an HTML page.
const OptNoHTML = "if_no_html"

// DefaultAVG is the averaging interval used when none is given (all points).
const DefaultAVG = "10"

// Data types. At least one must be present in a request.
const (
	AOD10 = "AOD10"
	AOD15 = "AOD15"
	AOD20 = "AOD20"
	SDA10 = "SDA10"
	SDA15 = "SDA15"
	SDA20 = "SDA20"
	TOT10 = "TOT10"
	TOT15 = "TOT15"
	TOT20 = "TOT20"
)

var (
	requiredOptions = []string{OptAVG, OptYear, OptMonth, OptDay}

	dataTypes = []string{AOD10, AOD15, AOD20, SDA10, SDA15, SDA20, TOT10, TOT15, TOT20}

	optionalOptions = []string{
		"hour", "year2", "month2", "day2", "hour2",
		"site", "lat1", "lat2", "lon1", "lon2",
		"lunar_merge", "ldp_year", "ldp_month", "ldp_day",
		OptNoHTML,
	}

	knownOptions = func() map[string]struct{} {
		known := make(map[string]struct{}, len(requiredOptions)+len(dataTypes)+len(optionalOptions))
		for _, group := range [][]string{requiredOptions, dataTypes, optionalOptions} {
			for _, k := range group {
				known[k] = struct{}{}
			}
		}
		return known
	}()
)

// RequiredOptions returns the parameters every request must carry.
func RequiredOptions() []string { return append([]string(nil), requiredOptions...) }

// DataTypes returns the data type selectors, in service order.
func DataTypes() []string { return append([]string(nil), dataTypes...) }

// OptionalOptions returns the remaining recognised parameters.
func OptionalOptions() []string { return append([]string(nil), optionalOptions...) }

// IsKnownOption reports whether key is a recognised parameter.
func IsKnownOption(key string) bool {
	_, ok := knownOptions[key]
	return ok
}

// Set stores a string value and returns o for chaining.
func (o Options) Set(key, value string) Options {
	o[key] = value
	return o
}

// SetInt stores an integer value.
func (o Options) SetInt(key string, value int) Options {
	o[key] = strconv.Itoa(value)
	return o
}

// SetFlag stores a flag (the service expects "1").
func (o Options) SetFlag(key string) Options {
	o[key] = "1"
	return o
}

// Clone returns a copy of o. A nil receiver yields an empty map.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Keys returns the option names in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values converts o to query parameters.
func (o Options) Values() url.Values {
	v := make(url.Values, len(o))
	for k, val := range o {
		v.Set(k, val)
	}
	return v
}

// Encode returns o as a query string with keys in sorted order.
func (o Options) Encode() string {
	return o.Values().Encode()
}

// ValidateOptions overlays overrides on defaults, fills in AVG, and checks
// the result. With requireMandatory the required parameters and at least one
// data type must be present. Unknown keys are always rejected. Neither input
// is modified.
func ValidateOptions(defaults, overrides Options, requireMandatory bool) (Options, error) {
	opts := defaults.Clone()
	for k, v := range overrides {
		opts[k] = v
	}
	if _, ok := opts[OptAVG]; !ok {
		opts[OptAVG] = DefaultAVG
	}

	if requireMandatory {
		var missing []string
		for _, k := range requiredOptions {
			if _, ok := opts[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, &ValidationError{Kind: ValidationMissingRequired, Keys: missing}
		}

		if !hasDataType(opts) {
			return nil, &ValidationError{Kind: ValidationMissingDataType, Keys: DataTypes()}
		}
	}

	var unknown []string
	for k := range opts {
		if !IsKnownOption(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ValidationError{Kind: ValidationUnknownOption, Keys: unknown}
	}

	return opts, nil
}

func hasDataType(opts Options) bool {
	for _, k := range dataTypes {
		if _, ok := opts[k]; ok {
			return true
		}
	}
	return false
}
