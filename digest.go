package track

import (
	"github.com/bouthilx/track/aggregator"
	"github.com/bouthilx/track/structure"
)

// shortVersionLen is how much of the version tag the short digest keeps.
const shortVersionLen = 10

// Digest projects an entity into the JSON document the report prints. The
// short form drops the identifiers that only matter to storages (uid, hash,
// project and group references) and truncates the version tag.
func Digest(obj any, short bool) map[string]any {
	switch v := obj.(type) {
	case *structure.Trial:
		return trialDigest(v, short)
	case *structure.Project:
		return projectDigest(v)
	case *structure.TrialGroup:
		return groupDigest(v)
	}
	return nil
}

func trialDigest(t *structure.Trial, short bool) map[string]any {
	version := t.Version
	if short && len(version) > shortVersionLen {
		version = version[:shortVersionLen]
	}

	digest := map[string]any{
		"dtype":       "trial",
		"uid":         t.UID,
		"revision":    t.Revision,
		"hash":        t.Hash(),
		"name":        t.Name,
		"description": t.Description,
		"version":     version,
		"tags":        t.Tags,
		"group_id":    t.GroupID,
		"project_id":  t.ProjectID,
		"parameters":  t.Parameters,
		"metadata":    containerMapDigest(t.Metadata, short),
		"metrics":     containerMapDigest(t.Metrics, short),
		"chronos":     containerMapDigest(t.Chronos, short),
		"errors":      t.Errors,
		"status":      map[string]any{"name": t.Status.Name, "value": t.Status.Value},
	}

	if short {
		for _, key := range []string{"dtype", "hash", "uid", "project_id", "group_id"} {
			delete(digest, key)
		}
	}
	return digest
}

func projectDigest(p *structure.Project) map[string]any {
	return map[string]any{
		"dtype":       "project",
		"uid":         p.UID,
		"name":        p.Name,
		"description": p.Description,
		"tags":        p.Tags,
		"groups":      p.Groups,
		"trials":      p.Trials,
	}
}

func groupDigest(g *structure.TrialGroup) map[string]any {
	return map[string]any{
		"dtype":       "trial_group",
		"uid":         g.UID,
		"name":        g.Name,
		"description": g.Description,
		"tags":        g.Tags,
		"project_id":  g.ProjectID,
		"trials":      g.Trials,
	}
}

func containerMapDigest(containers map[string]any, short bool) map[string]any {
	out := make(map[string]any, len(containers))
	for k, v := range containers {
		out[k] = containerDigest(v, short)
	}
	return out
}

// containerDigest reports a metric container's value, preferring the compact
// form in short digests. Values that are not containers pass through.
func containerDigest(v any, short bool) any {
	if short {
		if s, ok := v.(aggregator.Shorter); ok {
			return s.Short()
		}
	}
	if a, ok := v.(aggregator.Aggregator); ok {
		return a.Value()
	}
	return v
}
