package enrichment

import (
	"encoding/json"

	"github.com/itchyny/gojq"
)

// DeclaredLicenseProperty is the component property name annotated with the
// ClearlyDefined declared-license value.
const DeclaredLicenseProperty = "clearly-defined"

var declaredLicenseQuery = mustParseQuery(".licensed.declared")

func mustParseQuery(src string) *gojq.Query {
	query, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	return query
}

// ExtractDeclaredLicense reads $.licensed.declared out of a ClearlyDefined
// JSON payload. ok is false whenever the key is absent or the value is not
// a string; neither case is itself a failure worth surfacing. err
// is only a JSON syntax error, which the caller may choose to log as
// KindBadPayload.
func ExtractDeclaredLicense(payload []byte) (value string, ok bool, err error) {
	var doc any
	if unmarshalErr := json.Unmarshal(payload, &doc); unmarshalErr != nil {
		return "", false, unmarshalErr
	}

	iter := declaredLicenseQuery.Run(doc)
	result, hasResult := iter.Next()
	if !hasResult {
		return "", false, nil
	}
	if queryErr, isErr := result.(error); isErr {
		return "", false, queryErr
	}
	s, isString := result.(string)
	if !isString {
		return "", false, nil
	}
	return s, true, nil
}

// Annotate adds DeclaredLicenseProperty to component when payload carries a
// string declared-license value. applied is false, with a nil err, in every
// other case (absent key, wrong type) — that is a no-op, not a failure.
func Annotate(component Component, payload []byte) (applied bool, err error) {
	value, ok, err := ExtractDeclaredLicense(payload)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	component.AddProperty(DeclaredLicenseProperty, value)
	return true, nil
}
