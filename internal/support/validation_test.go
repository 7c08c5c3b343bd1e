package support

import (
	"strings"
	"testing"
)

type validationSample struct {
	BaseURL string `validate:"required,url"`
	Days    int    `validate:"gt=0"`
}

func TestValidateStructMessages(t *testing.T) {
	err := ValidateStruct(validationSample{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"BaseURL is required", "Days must be greater than 0"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}

	if err := ValidateStruct(validationSample{BaseURL: "https://cv.local/api/3.0", Days: 7}); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
