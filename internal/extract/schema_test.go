package extract

import "testing"

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildExtractionJSONSchema()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			"full reading",
			`{"candidates":[{"amount":890.00,"reference":"GC-1","method":"GCash","confidence":0.95}],"overall_confidence":0.95,"requires_review":false}`,
			false,
		},
		{
			"empty reading",
			`{"candidates":[],"overall_confidence":0.1,"requires_review":true}`,
			false,
		},
		{
			"candidate without amount",
			`{"candidates":[{"reference":"GC-1","confidence":0.4}],"overall_confidence":0.4}`,
			false,
		},
		{
			"missing overall confidence",
			`{"candidates":[]}`,
			true,
		},
		{
			"candidate missing confidence",
			`{"candidates":[{"amount":890.00}],"overall_confidence":0.9}`,
			true,
		},
		{
			"confidence out of range",
			`{"candidates":[],"overall_confidence":1.5}`,
			true,
		},
		{
			"negative amount",
			`{"candidates":[{"amount":-5,"confidence":0.9}],"overall_confidence":0.9}`,
			true,
		},
		{
			"unknown field",
			`{"candidates":[],"overall_confidence":0.9,"note":"hi"}`,
			true,
		},
		{
			"not json",
			`the payment looks fine to me`,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONAgainstSchema(schema, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
