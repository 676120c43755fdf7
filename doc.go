// Package cloudscribe provides multi-tenant account management: password
// and external-provider login, two-factor completion, self registration,
// password reset and email confirmation, all scoped per site.
//
// Login pipeline:
//   - AccountService is the entry point. Each flow resolves the account,
//     runs the site's login rules, verifies the credential through a
//     SignInManager, and returns a uniform UserLoginResult. Policy
//     rejections and wrong credentials come back in the result; errors are
//     reserved for infrastructure failure.
//   - LoginRulesProcessor evaluates the ordered post-credential policies
//     (approval, confirmed email, terms agreement, confirmed phone). Every
//     rule always runs so callers can surface all outstanding requirements
//     in one round trip.
//   - ExternalUserReconciler matches a provider assertion to a local
//     account by stored link, then email, then creates one from the claims.
//     It never auto-links an email match; linking stays an explicit user
//     action.
//
// Collaborators:
//   - Users and UserLogins are the persistence contracts, with bun-backed
//     defaults in NewUsersRepository and NewUserLoginsRepository.
//   - SecurityTokens issues purpose-scoped tokens for email confirmation,
//     password reset and two-factor handoff; JWTSecurityTokens is the HS256
//     default.
//   - The messaging subpackage delivers the matching notification mail.
package cloudscribe
