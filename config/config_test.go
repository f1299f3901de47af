package config

import "testing"

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wagers")
	t.Setenv("SERVICE_TOKEN", "secret")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Port != "5200" {
		t.Errorf("Port = %q, want 5200", cfg.Port)
	}
	if cfg.Policy != DefaultPolicy() {
		t.Errorf("Policy = %+v, want %+v", cfg.Policy, DefaultPolicy())
	}
	if cfg.R2.Enabled() {
		t.Error("R2 should be disabled without credentials")
	}
}

func TestParse_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVICE_TOKEN", "secret")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestParse_PolicyOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wagers")
	t.Setenv("SERVICE_TOKEN", "secret")
	t.Setenv("PLATFORM_FEE_PERCENT", "15")
	t.Setenv("MAX_CAMPAIGN_BATTLES", "3")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Policy.PlatformFeePercent != 15 {
		t.Errorf("PlatformFeePercent = %d, want 15", cfg.Policy.PlatformFeePercent)
	}
	if cfg.Policy.MaxCampaignBattles != 3 {
		t.Errorf("MaxCampaignBattles = %d, want 3", cfg.Policy.MaxCampaignBattles)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{"defaults", func(*Policy) {}, false},
		{"fee above 100", func(p *Policy) { p.PlatformFeePercent = 101 }, true},
		{"negative fee", func(p *Policy) { p.PlatformFeePercent = -1 }, true},
		{"zero minimum", func(p *Policy) { p.MinWithdrawalCredits = 0 }, true},
		{"zero battle cap", func(p *Policy) { p.MaxCampaignBattles = 0 }, true},
		{"free withdrawals", func(p *Policy) { p.WithdrawalFeeCredits = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrigins_Trims(t *testing.T) {
	cfg := Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	if got := cfg.Origins(); got != "https://a.example,https://b.example" {
		t.Errorf("Origins() = %q", got)
	}
}
