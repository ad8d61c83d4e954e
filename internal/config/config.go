// Package config handles configuration loading for the NCIP relay.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like Alma API keys embedded in the endpoint URL templates to be injected
// at runtime. The loaded configuration is immutable and safe for
// unsynchronized concurrent reads.
//
// # Configuration Sections
//
//   - server: HTTP listen address
//   - relay: InnReach-side identity (site code, scheme tags, user group)
//   - alma: Alma-side identity and the NCIP endpoint
//   - checkout: checkout/renewal orchestration (feature flag, loan API URLs)
//   - logging: log level
//
// # Example Configuration
//
//	server:
//	  addr: ":8080"
//
//	relay:
//	  site_code: "cmel"
//	  scheme_tag: "http://mel.org/ncip/schemes/agencyid"
//	  user_id_scheme_tag: "http://mel.org/ncip/schemes/userid"
//	  user_group: "MeLCat Patron"
//
//	alma:
//	  institution_code: "01CMICH_INST"
//	  institution_name: "Central Michigan University"
//	  ncip_url: "https://na01.alma.exlibrisgroup.com/view/NCIPServlet"
//	  profile_code: "MELCAT"
//	  timeout: 30s
//
//	checkout:
//	  enabled: true
//	  desk: "DEFAULT_CIRC_DESK"
//	  library: "MAIN"
//	  loan_url: "https://api-na.hosted.exlibrisgroup.com/almaws/v1/users/%s/loans?item_barcode=%s&apikey=${ALMA_API_KEY}"
//	  due_date_url: "https://api-na.hosted.exlibrisgroup.com/almaws/v1/users/%s/loans/%s?apikey=${ALMA_API_KEY}"
//	  user_loans_url: "https://api-na.hosted.exlibrisgroup.com/almaws/v1/users/%s/loans?limit=100&apikey=${ALMA_API_KEY}"
//
// The three checkout URLs are printf templates. loan_url receives the user
// identifier and the item barcode, due_date_url the user identifier and the
// loan identifier, user_loans_url the user identifier alone.
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Relay    RelayConfig    `yaml:"relay"`
	Alma     AlmaConfig     `yaml:"alma"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RelayConfig holds the InnReach-side identity of this relay
type RelayConfig struct {
	// SiteCode is the InnReach site code identifying this library in the
	// resource-sharing network.
	SiteCode string `yaml:"site_code"`
	// SchemeTag is the agency-id scheme string the InnReach side expects in
	// place of Alma's fixed "NCIP Unique Agency Id" scheme.
	SchemeTag string `yaml:"scheme_tag"`
	// UserIDSchemeTag is the scheme string for UniqueUserId blocks injected
	// into LookupUser requests.
	UserIDSchemeTag string `yaml:"user_id_scheme_tag"`
	// UserGroup is substituted for every Alma user-privilege value; the Alma
	// privilege taxonomy is not mapped.
	UserGroup string `yaml:"user_group"`
}

// AlmaConfig holds the Alma-side identity and the NCIP endpoint
type AlmaConfig struct {
	InstitutionCode string `yaml:"institution_code"`
	InstitutionName string `yaml:"institution_name"`
	// NCIPURL is the Alma NCIP servlet endpoint for the generic relay path.
	NCIPURL string `yaml:"ncip_url"`
	// ProfileCode is inserted as the ApplicationProfileType value on
	// outbound initiation headers.
	ProfileCode string `yaml:"profile_code"`
	// Timeout bounds each outbound HTTP call. Zero means no timeout, which
	// matches the historical behavior of the relay.
	Timeout time.Duration `yaml:"timeout"`
}

// CheckoutConfig holds checkout/renewal orchestration settings
type CheckoutConfig struct {
	// Enabled turns ItemCheckedOut/ItemRenewed handling into live Alma API
	// transactions. When false those requests take the generic relay path.
	Enabled bool   `yaml:"enabled"`
	Desk    string `yaml:"desk"`
	Library string `yaml:"library"`
	// LoanURL is a printf template receiving (user id, item id).
	LoanURL string `yaml:"loan_url"`
	// DueDateURL is a printf template receiving (user id, loan id).
	DueDateURL string `yaml:"due_date_url"`
	// UserLoansURL is a printf template receiving (user id).
	UserLoansURL string `yaml:"user_loans_url"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, expands, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.Relay.SiteCode == "" {
		missing = append(missing, "relay.site_code")
	}
	if c.Alma.InstitutionCode == "" {
		missing = append(missing, "alma.institution_code")
	}
	if c.Alma.NCIPURL == "" {
		missing = append(missing, "alma.ncip_url")
	}
	if c.Checkout.Enabled {
		if c.Checkout.LoanURL == "" {
			missing = append(missing, "checkout.loan_url")
		}
		if c.Checkout.DueDateURL == "" {
			missing = append(missing, "checkout.due_date_url")
		}
		if c.Checkout.UserLoansURL == "" {
			missing = append(missing, "checkout.user_loans_url")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
