package integrations

import (
	"context"

	"github.com/stakwork/hivebridge/github"
)

// Detection is the outcome of an installation check. OwnerType is empty when
// the database short-circuit answered without a remote lookup.
type Detection struct {
	Installed      bool
	InstallationID int64
	OwnerType      github.OwnerType
}

// DetectInstallation determines whether the GitHub App is installed for the
// given owner login. The database is consulted first; a stored installation
// id answers without any remote call. The API fallback runs only when the
// user has a GitHub OAuth token, and every fallback failure is absorbed to
// not-installed. Detection never returns an error.
func (s *Service) DetectInstallation(ctx context.Context, userID, owner string) Detection {
	l := s.logger.With().Str("owner", owner).Logger()

	org, err := s.sourceControlOrgs.GetSourceControlOrgByLogin(ctx, owner)
	if err != nil {
		l.Warn().Err(err).Msg("Installation lookup failed, falling back to API")
	} else if sco, ok := org.Get(); ok && sco.GithubInstallationID != nil {
		l.Debug().Int64("installation_id", *sco.GithubInstallationID).Msg("Installation known from database")
		return Detection{
			Installed:      true,
			InstallationID: *sco.GithubInstallationID,
		}
	}

	token, ok := s.userToken(ctx, userID)
	if !ok {
		l.Debug().Msg("No user token available, skipping API installation check")
		return Detection{}
	}

	ownerType, err := s.github.GetOwnerType(ctx, token, owner)
	if err != nil {
		l.Debug().Err(err).Msg("Owner type lookup failed, treating App as not installed")
		return Detection{}
	}

	var installationID int64
	switch ownerType {
	case github.OwnerTypeUser:
		installationID, err = s.github.FindUserInstallation(ctx, token, owner)
	default:
		installationID, err = s.github.FindOrgInstallation(ctx, token, owner)
	}
	if err != nil {
		// A 404 simply means not installed; other failures degrade the same way.
		l.Debug().Err(err).Str("owner_type", string(ownerType)).Msg("No App installation found for owner")
		return Detection{OwnerType: ownerType}
	}

	l.Debug().Int64("installation_id", installationID).Msg("Installation found via API")
	return Detection{
		Installed:      true,
		InstallationID: installationID,
		OwnerType:      ownerType,
	}
}

// userToken returns the user's decryptable GitHub OAuth token, absorbing all
// failures into "no token".
func (s *Service) userToken(ctx context.Context, userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	token, err := s.sessions.GetUserAccessToken(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("User token lookup failed")
		return "", false
	}
	return token.Get()
}
