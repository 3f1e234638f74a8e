// Package githubauth resolves the GitHub access token from env:NAME or
// file:/path sources, consulting an optional dotenv file after the process
// environment.
package githubauth
