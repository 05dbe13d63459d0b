// Package httpapp provides the HTTP server for MindMeld.
//
//	@title						MindMeld API
//	@version					1.0
//	@description				Expert-written articles with reader likes and dislikes.
//	@description
//	@description				## Authentication
//	@description
//	@description				Log in with email and password to receive a bearer token:
//	@description				```bash
//	@description				curl -X POST /api/auth/login -d '{"email":"me@example.com","password":"..."}'
//	@description				# Returns: {"token": "TOKEN", "expires_at": "...", "account": {...}}
//	@description				```
//	@description				Send it on every protected request:
//	@description				```bash
//	@description				curl -X POST /api/articles/ID/like -H "Authorization: Bearer TOKEN"
//	@description				```
//	@description
//	@description				## Roles
//	@description				| Role | May |
//	@description				|------|-----|
//	@description				| user | read articles, vote |
//	@description				| expert | also create and edit articles, delete own articles |
//	@description				| admin | everything, including deleting any article |
//
//	@contact.name				MindMeld
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from /api/auth/login
//
//	@tag.name					Articles
//	@tag.description			Browse, search and manage articles.
//
//	@tag.name					Votes
//	@tag.description			Like or dislike an article. One standing vote per user per article.
//
//	@tag.name					Authentication
//	@tag.description			Exchange email and password for a bearer token.
package httpapp
