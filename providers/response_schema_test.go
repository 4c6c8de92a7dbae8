package providers

import "testing"

func TestRequest_Validate_ResponseFormatJSONSchema(t *testing.T) {
	baseReq := func(rf *ResponseFormat) Request {
		return Request{
			Model:          "gpt-4o",
			Messages:       []Message{{Role: "user", Content: "hi"}},
			ResponseFormat: rf,
		}
	}

	tests := []struct {
		name    string
		rf      *ResponseFormat
		wantErr bool
	}{
		{
			name: "valid schema",
			rf: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: []byte(`{"name":"answer","schema":{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}}`),
			},
			wantErr: false,
		},
		{
			name: "missing schema field",
			rf: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: []byte(`{"name":"answer"}`),
			},
			wantErr: true,
		},
		{
			name: "malformed schema document",
			rf: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: []byte(`{"name":"answer","schema":{"type":"not-a-real-type"}}`),
			},
			wantErr: true,
		},
		{
			name: "not json_schema type, untouched",
			rf: &ResponseFormat{
				Type: "json_object",
			},
			wantErr: false,
		},
		{
			name:    "no response format",
			rf:      nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := baseReq(tt.rf).Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
