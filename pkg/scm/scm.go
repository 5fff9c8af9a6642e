/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package scm answers which remote source, head and revision a build
// validates, and which credential it uses to reach them.
package scm

import (
	"errors"
	"fmt"
)

// KindGitHub is the Source.Kind of repositories hosted on GitHub.
const KindGitHub = "github"

// Source is the remote repository a job builds.
type Source struct {
	Kind       string `json:"kind"`
	Owner      string `json:"owner"`
	Repository string `json:"repository"`

	// CredentialsID names the credential used to reach the repository.
	// Empty means anonymous access.
	CredentialsID string `json:"credentials_id,omitempty"`

	// APIURL is the REST endpoint of the hosting platform; empty means the
	// platform's public endpoint.
	APIURL string `json:"api_url,omitempty"`
}

// FullName is the "owner/repo" name of the source.
func (s *Source) FullName() string {
	return s.Owner + "/" + s.Repository
}

// Head is the branch or pull request a job builds: one of BranchHead or
// PullRequestHead.
type Head interface {
	// HeadName is the name the orchestrator gives the head, e.g. "main" or "PR-1".
	HeadName() string

	isHead()
}

type BranchHead struct {
	Name string
}

func (h BranchHead) HeadName() string { return h.Name }
func (BranchHead) isHead()            {}

type PullRequestHead struct {
	Number int
	// Branch is the source branch of the pull request.
	Branch string
	// Target is the branch the pull request merges into.
	Target string
}

func (h PullRequestHead) HeadName() string { return fmt.Sprintf("PR-%d", h.Number) }
func (PullRequestHead) isHead()            {}

// Revision is the commit a build validates: one of CommitRevision or
// PullRequestRevision.
type Revision interface {
	isRevision()
}

type CommitRevision struct {
	Hash string
}

func (CommitRevision) isRevision() {}

type PullRequestRevision struct {
	// PullHash is the head commit of the pull request.
	PullHash string
	// BaseHash is the commit of the target branch it was built against.
	BaseHash string
}

func (PullRequestRevision) isRevision() {}

// HeadSHA returns the commit a check run for rev is attached to.
func HeadSHA(rev Revision) (string, error) {
	var sha string
	switch r := rev.(type) {
	case CommitRevision:
		sha = r.Hash
	case *CommitRevision:
		sha = r.Hash
	case PullRequestRevision:
		sha = r.PullHash
	case *PullRequestRevision:
		sha = r.PullHash
	default:
		return "", &ResolutionError{
			Reason: ReasonUnsupportedRevision,
			Err:    fmt.Errorf("revision type %T", rev),
		}
	}
	if sha == "" {
		return "", &ResolutionError{
			Reason: ReasonNoRevision,
			Err:    errors.New("revision has no commit hash"),
		}
	}
	return sha, nil
}

// Head kinds used by HeadRecord.
const (
	HeadKindBranch      = "branch"
	HeadKindPullRequest = "pull-request"
)

// HeadRecord is the flat encoding of a Head.
type HeadRecord struct {
	Kind   string `json:"kind"`
	Name   string `json:"name,omitempty"`
	Number int    `json:"number,omitempty"`
	Branch string `json:"branch,omitempty"`
	Target string `json:"target,omitempty"`
}

// RecordHead encodes h.
func RecordHead(h Head) HeadRecord {
	switch h := h.(type) {
	case BranchHead:
		return HeadRecord{Kind: HeadKindBranch, Name: h.Name}
	case PullRequestHead:
		return HeadRecord{Kind: HeadKindPullRequest, Number: h.Number, Branch: h.Branch, Target: h.Target}
	}
	return HeadRecord{}
}

// Head decodes the record.
func (r HeadRecord) Head() (Head, error) {
	switch r.Kind {
	case HeadKindBranch:
		if r.Name == "" {
			return nil, errors.New("branch head without name")
		}
		return BranchHead{Name: r.Name}, nil
	case HeadKindPullRequest:
		if r.Number <= 0 {
			return nil, fmt.Errorf("pull request head with number %d", r.Number)
		}
		return PullRequestHead{Number: r.Number, Branch: r.Branch, Target: r.Target}, nil
	}
	return nil, fmt.Errorf("unknown head kind %q", r.Kind)
}

// Revision kinds used by RevisionRecord.
const (
	RevisionKindCommit      = "commit"
	RevisionKindPullRequest = "pull-request"
)

// RevisionRecord is the flat encoding of a Revision.
type RevisionRecord struct {
	Kind     string `json:"kind"`
	Hash     string `json:"hash,omitempty"`
	PullHash string `json:"pull_hash,omitempty"`
	BaseHash string `json:"base_hash,omitempty"`
}

// RecordRevision encodes rev.
func RecordRevision(rev Revision) RevisionRecord {
	switch r := rev.(type) {
	case CommitRevision:
		return RevisionRecord{Kind: RevisionKindCommit, Hash: r.Hash}
	case PullRequestRevision:
		return RevisionRecord{Kind: RevisionKindPullRequest, PullHash: r.PullHash, BaseHash: r.BaseHash}
	}
	return RevisionRecord{}
}

// Revision decodes the record.
func (r RevisionRecord) Revision() (Revision, error) {
	switch r.Kind {
	case RevisionKindCommit:
		return CommitRevision{Hash: r.Hash}, nil
	case RevisionKindPullRequest:
		return PullRequestRevision{PullHash: r.PullHash, BaseHash: r.BaseHash}, nil
	}
	return nil, fmt.Errorf("unknown revision kind %q", r.Kind)
}
