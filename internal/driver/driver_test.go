package driver

import (
	"errors"
	"testing"

	"github.com/relaykit/smsrelay/internal/config"
	"github.com/relaykit/smsrelay/internal/domain"
)

func TestFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *config.Config
		wantType string
		wantErr  bool
	}{
		{
			name:     "log driver",
			cfg:      &config.Config{Driver: "log"},
			wantType: "*driver.LogDriver",
		},
		{
			name:     "log driver case insensitive",
			cfg:      &config.Config{Driver: " LOG "},
			wantType: "*driver.LogDriver",
		},
		{
			name: "http driver",
			cfg: &config.Config{
				Driver:  "http",
				APIKey:  "key",
				BaseURL: "https://provider.example.com",
			},
			wantType: "*driver.HTTPDriver",
		},
		{
			name:    "unknown driver",
			cfg:     &config.Config{Driver: "smtp"},
			wantErr: true,
		},
		{
			name:    "http driver with incomplete settings",
			cfg:     &config.Config{Driver: "http"},
			wantErr: true,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := FromConfig(tt.cfg, nil)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Fatalf("FromConfig() error = %v, want ErrInvalidConfig", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("FromConfig() unexpected error = %v", err)
			}

			switch tt.wantType {
			case "*driver.LogDriver":
				if _, ok := d.(*LogDriver); !ok {
					t.Fatalf("FromConfig() = %T, want LogDriver", d)
				}
			case "*driver.HTTPDriver":
				if _, ok := d.(*HTTPDriver); !ok {
					t.Fatalf("FromConfig() = %T, want HTTPDriver", d)
				}
			}
		})
	}
}
