// Package notify records deployments on GitHub.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Deployment describes a finished deployment.
type Deployment struct {
	// Repository is "owner/repo".
	Repository  string
	Revision    string
	Branch      string
	Environment string
	// URL is shown as the environment URL on GitHub. Optional.
	URL string
}

// Registrar creates GitHub deployments and their statuses.
type Registrar struct {
	client *github.Client
}

// NewRegistrar creates a registrar authenticated with token. It returns nil
// when token is empty.
func NewRegistrar(ctx context.Context, token string) *Registrar {
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return &Registrar{client: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// NewRegistrarWithClient wraps an existing client.
func NewRegistrarWithClient(client *github.Client) *Registrar {
	return &Registrar{client: client}
}

// Register creates a deployment for d.Revision and marks it successful.
// It returns the deployment ID.
func (r *Registrar) Register(ctx context.Context, d Deployment) (int64, error) {
	owner, repo, ok := strings.Cut(d.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return 0, fmt.Errorf("invalid owner/repo format: %s", d.Repository)
	}
	if d.Revision == "" {
		return 0, fmt.Errorf("deployment revision is empty")
	}

	description := fmt.Sprintf("Deployed %s", d.Revision)
	if d.Branch != "" {
		description = fmt.Sprintf("Deployed %s from %s", d.Revision, d.Branch)
	}

	req := &github.DeploymentRequest{
		Ref:              github.String(d.Revision),
		Task:             github.String("deploy"),
		AutoMerge:        github.Bool(false),
		RequiredContexts: &[]string{},
		Environment:      github.String(d.Environment),
		Description:      github.String(description),
	}
	deployment, _, err := r.client.Repositories.CreateDeployment(ctx, owner, repo, req)
	if err != nil {
		return 0, fmt.Errorf("creating deployment: %w", err)
	}

	statusReq := &github.DeploymentStatusRequest{
		State:       github.String("success"),
		Description: github.String(description),
	}
	if d.URL != "" {
		statusReq.EnvironmentURL = github.String(d.URL)
	}
	if _, _, err := r.client.Repositories.CreateDeploymentStatus(ctx, owner, repo, deployment.GetID(), statusReq); err != nil {
		return deployment.GetID(), fmt.Errorf("creating deployment status: %w", err)
	}

	return deployment.GetID(), nil
}
