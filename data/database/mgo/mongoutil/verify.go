package mongoutil

import (
	"socialchat/tools/errs"
)

// ValidateAndSetDefaults validates the configuration and sets default values.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Uri == "" && len(c.Address) == 0 {
		return errs.ErrValidation.WrapMsg("mongo uri or address is required")
	}
	if c.Database == "" {
		return errs.ErrValidation.WrapMsg("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	if c.AuthSource == "" && c.Username != "" {
		c.AuthSource = c.Database
	}
	return nil
}
