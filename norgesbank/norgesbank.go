// Package norgesbank downloads daily exchange rates published by Norges
// Bank, the reference rates of the Norwegian tax administration.
package norgesbank

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/shopspring/decimal"
)

// Base is the currency every Norges Bank rate is expressed in.
const Base = "NOK"

// DefaultURL is the Norges Bank data API.
const DefaultURL = "https://data.norges-bank.no/api/data/EXR"

// Fetch retrieves the daily rates of currency against NOK over period.
//
// apiURL is usually DefaultURL. Rates of currencies quoted per 100 units
// (like JPY) are scaled down to a single unit.
func Fetch(client *http.Client, apiURL, currency string, period date.Range) ([]espp.Observation, error) {
	if err := espp.ValidateCurrency(currency); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("format", "sdmx-json")
	q.Set("startPeriod", period.From.String())
	q.Set("endPeriod", period.To.String())
	q.Set("locale", "en")
	addr := fmt.Sprintf("%s/B.%s.%s.SP?%s", apiURL, currency, Base, q.Encode())

	var jobj any
	if err := jwget(client, addr, &jobj); err != nil {
		return nil, fmt.Errorf("cannot get %s rates: %w", currency, err)
	}
	obs, err := parseSeries(jobj, currency)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s rates: %w", currency, err)
	}
	return obs, nil
}

// FetchAll retrieves the rates of every currency over period.
func FetchAll(client *http.Client, apiURL string, currencies []string, period date.Range) ([]espp.Observation, error) {
	var all []espp.Observation
	for _, cur := range currencies {
		if cur == Base {
			continue
		}
		obs, err := Fetch(client, apiURL, cur, period)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
	}
	return all, nil
}

// get evaluates a JSONPath expression, and keeps the first answer when a
// list is returned.
func get(path string, jobj any) (any, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error evaluating %q: %w", path, err)
	}
	// jsonpath returns a list of answers for wildcards.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	return jval, nil
}

// parseSeries extracts observations from an SDMX-JSON data message holding a
// single series.
func parseSeries(jobj any, currency string) ([]espp.Observation, error) {
	jdays, err := jsonpath.Get("$.data.structure.dimensions.observation[0].values[*].id", jobj)
	if err != nil {
		return nil, fmt.Errorf("no observation dates: %w", err)
	}
	days, ok := jdays.([]any)
	if !ok {
		return nil, fmt.Errorf("observation dates are not a list: %v", jdays)
	}

	jobs, err := get("$.data.dataSets[0].series.*.observations", jobj)
	if err != nil {
		return nil, fmt.Errorf("no observations: %w", err)
	}
	observations, ok := jobs.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("observations are not an object: %v", jobs)
	}

	mult, err := unitMultiplier(jobj)
	if err != nil {
		return nil, err
	}

	res := make([]espp.Observation, 0, len(observations))
	for i, raw := range days {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("observation date %d is not a string: %v", i, raw)
		}
		on, err := date.Parse(s)
		if err != nil {
			return nil, err
		}
		values, ok := observations[strconv.Itoa(i)].([]any)
		if !ok || len(values) == 0 {
			continue // no value published that day
		}
		str, ok := values[0].(string)
		if !ok {
			return nil, fmt.Errorf("value on %s is not a string: %v", on, values[0])
		}
		rate, err := decimal.NewFromString(str)
		if err != nil {
			return nil, fmt.Errorf("value on %s: %w", on, err)
		}
		res = append(res, espp.Observation{Date: on, Base: Base, Currency: currency, Rate: rate.Shift(-mult)})
	}
	return res, nil
}

// unitMultiplier returns the power of ten the series values are quoted in,
// from the UNIT_MULT series attribute. It is 0 when the attribute is absent.
func unitMultiplier(jobj any) (int32, error) {
	jids, err := jsonpath.Get("$.data.structure.attributes.series[*].id", jobj)
	if err != nil {
		return 0, nil
	}
	ids, _ := jids.([]any)
	for i, id := range ids {
		if id != "UNIT_MULT" {
			continue
		}
		jidx, err := get(fmt.Sprintf("$.data.dataSets[0].series.*.attributes[%d]", i), jobj)
		if err != nil {
			return 0, fmt.Errorf("no UNIT_MULT value: %w", err)
		}
		idx, ok := jidx.(float64)
		if !ok {
			return 0, nil // attribute not set on this series
		}
		jval, err := get(fmt.Sprintf("$.data.structure.attributes.series[%d].values[%d].id", i, int(idx)), jobj)
		if err != nil {
			return 0, fmt.Errorf("no UNIT_MULT value: %w", err)
		}
		str, _ := jval.(string)
		mult, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("invalid UNIT_MULT %v: %w", jval, err)
		}
		return int32(mult), nil
	}
	return 0, nil
}
