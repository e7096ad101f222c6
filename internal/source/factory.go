package source

import (
	"strings"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

// BuildClient translates a persisted Source plus its decrypted Credentials
// into the ProtocolClient variant spec.md §4.2 names for that protocol. This
// is the one place a Source's column layout is mapped onto each client
// constructor's argument list, shared by the Pool's dial factory and the
// network-admin handlers' ad-hoc test/browse calls.
func BuildClient(src *models.Source, creds Credentials) (ProtocolClient, error) {
	basePath := ""
	if src.BasePath != nil {
		basePath = *src.BasePath
	}
	port := 0
	if src.Port != nil {
		port = *src.Port
	}

	switch src.Protocol {
	case models.ProtocolLocal:
		return NewLocalClient(basePath), nil
	case models.ProtocolFTP:
		return NewFTPClient(src.Host, port, creds, basePath), nil
	case models.ProtocolSMB:
		share, rest := splitShare(basePath)
		domain := ""
		if src.Domain != nil {
			domain = *src.Domain
		}
		return NewSMBClient(src.Host, port, share, rest, creds, domain), nil
	case models.ProtocolUPnP:
		return NewUPnPClient(Device{Location: src.Host, FriendlyName: src.Name}), nil
	default:
		return nil, apperr.New(apperr.InvalidInput, "unknown source protocol")
	}
}

// splitShare divides an SMB base path into its leading share name and the
// remaining in-share path, e.g. "Movies/4K" -> ("Movies", "4K").
func splitShare(basePath string) (share, rest string) {
	trimmed := strings.TrimPrefix(basePath, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	share = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return share, rest
}
