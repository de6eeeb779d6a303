package resource

import (
	"fmt"
	"strings"
)

// CurseforgeURI is the canonical uri of a CurseForge file.
func CurseforgeURI(projectID, fileID int) string {
	return fmt.Sprintf("curseforge:%d:%d", projectID, fileID)
}

// ModrinthURI is the canonical uri of a Modrinth version.
func ModrinthURI(projectID, versionID string) string {
	return fmt.Sprintf("modrinth:%s:%s", projectID, versionID)
}

func GithubURI(g GitSource) string {
	if g.Artifact == "" {
		return fmt.Sprintf("github:%s/%s", g.Owner, g.Repo)
	}
	return fmt.Sprintf("github:%s/%s:%s", g.Owner, g.Repo, g.Artifact)
}

// JoinURI builds a colon separated uri, dropping a trailing empty part.
// Colons inside parts are replaced so the uri stays splittable.
func JoinURI(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		clean = append(clean, strings.ReplaceAll(strings.TrimSpace(p), ":", "_"))
	}
	for len(clean) > 1 && clean[len(clean)-1] == "" {
		clean = clean[:len(clean)-1]
	}
	return strings.Join(clean, ":")
}
