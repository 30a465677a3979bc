package domain

import (
	"errors"
	"testing"
)

func TestParseRecipientTypeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    RecipientType
		wantErr bool
	}{
		{name: "valid uppercase", input: "MOBILE", want: RecipientMobile},
		{name: "valid lowercase with spaces", input: " contact ", want: RecipientContact},
		{name: "valid group", input: "group", want: RecipientGroup},
		{name: "invalid", input: "email", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRecipientTypeFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseRecipientTypeFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseRecipientTypeFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseRecipientTypeFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeRecipientValueMobile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		input         string
		countryPrefix string
		want          string
		wantErr       bool
	}{
		{
			name:  "international form left unchanged",
			input: "+14155552671",
			want:  "+14155552671",
		},
		{
			name:  "double zero prefix converted",
			input: "00905551112233",
			want:  "+905551112233",
		},
		{
			name:          "leading zero replaced with default prefix",
			input:         "05551112233",
			countryPrefix: "+90",
			want:          "+905551112233",
		},
		{
			name:          "spaces inside number tolerated",
			input:         " 0555 111 22 33 ",
			countryPrefix: "+90",
			want:          "+905551112233",
		},
		{
			name:    "local form without configured prefix fails",
			input:   "05551112233",
			wantErr: true,
		},
		{
			name:    "too short to be dialable",
			input:   "1234",
			wantErr: true,
		},
		{
			name:          "structurally invalid number fails",
			input:         "+1999999",
			countryPrefix: "+90",
			wantErr:       true,
		},
		{
			name:    "empty value fails",
			input:   "  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeRecipientValue(RecipientMobile, tt.input, tt.countryPrefix)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecipient) {
					t.Fatalf("NormalizeRecipientValue() error = %v, want ErrInvalidRecipient", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("NormalizeRecipientValue() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeRecipientValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeRecipientValuePassThroughTypes(t *testing.T) {
	t.Parallel()

	got, err := NormalizeRecipientValue(RecipientContact, " contact-42 ", "")
	if err != nil {
		t.Fatalf("NormalizeRecipientValue() unexpected error = %v", err)
	}
	if got != "contact-42" {
		t.Fatalf("NormalizeRecipientValue() = %q, want %q", got, "contact-42")
	}

	got, err = NormalizeRecipientValue(RecipientGroup, "team-oncall", "")
	if err != nil {
		t.Fatalf("NormalizeRecipientValue() unexpected error = %v", err)
	}
	if got != "team-oncall" {
		t.Fatalf("NormalizeRecipientValue() = %q, want %q", got, "team-oncall")
	}

	_, err = NormalizeRecipientValue(RecipientContact, "   ", "")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("NormalizeRecipientValue() error = %v, want ErrInvalidRecipient", err)
	}

	_, err = NormalizeRecipientValue(RecipientType("EMAIL"), "a@b.c", "")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("NormalizeRecipientValue() error = %v, want ErrInvalidRecipient", err)
	}
}

func TestNewRecipientAssignsProvisionalID(t *testing.T) {
	t.Parallel()

	first, err := NewRecipient(RecipientMobile, "+14155552671", "")
	if err != nil {
		t.Fatalf("NewRecipient() unexpected error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("NewRecipient() should assign a provisional id")
	}
	if first.Value != "+14155552671" {
		t.Fatalf("Value = %q, want normalized number", first.Value)
	}

	second, err := NewRecipient(RecipientMobile, "+14155552671", "")
	if err != nil {
		t.Fatalf("NewRecipient() unexpected error = %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("provisional ids should be unique per construction")
	}
}
