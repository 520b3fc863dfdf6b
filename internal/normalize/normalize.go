// Package normalize maps raw permit rows from heterogeneous municipal
// exports into canonical scored leads.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/permit-cli/internal/model"
)

// Candidate key lists per canonical field, tried in order. Municipal data
// exports have no agreed schema; first non-empty value wins.
var (
	idKeys = []string{
		"Permit Number", "permit_number", "PERMIT", "PermitNum", "permit_no",
		"PERMIT_NO", "RecordID", "record_id", "OBJECTID", "objectid", "id",
	}
	nameKeys = []string{
		"Applicant Name", "applicant_name", "Contractor", "contractor_name",
		"CONTRACTOR", "Owner Name", "owner_name", "applicant",
	}
	descKeys = []string{
		"Work Description", "work_description", "Description", "description",
		"Work Type", "work_type", "Permit Type", "permit_type", "PERMITTYPE",
		"Trade", "trade", "PermitClass", "permit_class",
	}
	addressKeys = []string{
		"Address", "address", "Project Address", "project_address",
		"ADDRESS", "original_address1", "FullAddress", "full_address",
		"Location", "location",
	}
	zipKeys = []string{
		"Zip", "zip", "ZIP", "Zip Code", "zip_code", "ZIPCODE",
		"original_zip", "PostalCode", "postal_code",
	}
	countyKeys = []string{
		"County", "county", "COUNTY", "Jurisdiction", "jurisdiction",
	}
	valueKeys = []string{
		"Valuation", "valuation", "Value", "value", "Permit Value",
		"permit_value", "Est Cost", "est_cost",
		"EstProjectCost", "estimated_cost", "JobValue", "job_value",
		"TOTALJOBVALUATION", "declared_valuation",
	}
)

// Record produces a scored lead from one raw permit row, or nil when the
// row carries no usable external identifier. It never fails on malformed
// input; unusable fields degrade to zero values.
func Record(rec model.PermitRecord, source string) *model.Lead {
	externalID := firstNonEmpty(rec, idKeys)
	if externalID == "" {
		return nil
	}

	value := ParseValue(firstNonEmpty(rec, valueKeys))
	score := Score(value)

	return &model.Lead{
		ExternalID:  externalID,
		Source:      source,
		ContactName: firstNonEmpty(rec, nameKeys),
		Trade:       ClassifyTrade(firstNonEmpty(rec, descKeys)),
		Address:     firstNonEmpty(rec, addressKeys),
		Zip:         firstNonEmpty(rec, zipKeys),
		County:      firstNonEmpty(rec, countyKeys),
		Value:       value,
		Score:       score,
		Label:       Label(score),
		Status:      model.LeadStatusNew,
	}
}

// firstNonEmpty resolves the first candidate key present in the record
// with a non-empty value.
func firstNonEmpty(rec model.PermitRecord, keys []string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		s := stringify(v)
		if s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode as float64; integral values print without
		// a fractional part so permit numbers survive round-tripping.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ParseValue strips all non-digit characters from a monetary string and
// parses the remainder. Unparseable input yields 0, never an error.
func ParseValue(raw string) int {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
		if r == '.' {
			// Cents are dropped; the magnitude left of the decimal wins.
			break
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}
