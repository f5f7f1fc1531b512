package config

import "github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"

// SiteContext converts the section into the acquisition protocols' input.
func (s SiteConfig) SiteContext() sharepoint.SiteContext {
	return sharepoint.SiteContext{
		URL:      s.URL,
		Secret:   s.Secret,
		ClientID: s.ClientID,
		Resource: s.Resource,
		ACSURL:   s.ACS,
	}
}
