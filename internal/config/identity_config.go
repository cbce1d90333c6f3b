package config

import "strings"

func (c *mainConfig) GetIdentityProvider() string {
	return strings.ToLower(strings.TrimSpace(c.v.GetString(identityProviderVar)))
}

func (c *mainConfig) GetCognitoUserPoolID() string {
	return c.v.GetString(cognitoUserPoolIDVar)
}

func (c *mainConfig) GetCognitoClientID() string {
	return c.v.GetString(cognitoClientIDVar)
}

func (c *mainConfig) GetCognitoClientSecret() string {
	return c.v.GetString(cognitoClientSecretVar)
}

// GetCognitoRegion may be empty; the pool id prefix is used then.
func (c *mainConfig) GetCognitoRegion() string {
	return strings.TrimSpace(c.v.GetString(cognitoRegionVar))
}

func (c *mainConfig) GetLocalIdPSecret() string {
	return c.v.GetString(localIdPSecretVar)
}

func (c *mainConfig) GetLocalIdPIssuer() string {
	return c.v.GetString(localIdPIssuerVar)
}

func (c *mainConfig) GetSmtpHost() string {
	return c.v.GetString(smtpHostVar)
}

func (c *mainConfig) GetSmtpPort() int {
	return c.v.GetInt(smtpPortVar)
}

func (c *mainConfig) GetSmtpAccount() string {
	return c.v.GetString(smtpAccountVar)
}

func (c *mainConfig) GetSmtpPassword() string {
	return c.v.GetString(smtpPasswordVar)
}
