// Package github is the data source service for files in a GitHub
// repository.
package github

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	authplugins "github.com/winhowes/RemoteData/app/auth"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

const Name = "github"

// APIBase is the GitHub REST API root.
var APIBase = "https://api.github.com"

type Service struct{}

func (Service) Name() string { return Name }

func (Service) ConfigSchema() *schema.Type {
	return schema.Object(
		schema.Field("repo_owner", schema.Matching(`^[A-Za-z0-9][A-Za-z0-9-]*$`)),
		schema.Field("repo_name", schema.Matching(`^[A-Za-z0-9._-]+$`)),
		schema.Field("ref", schema.WithDefault(schema.String(), "main")),
		schema.Field("token", schema.Nullable(schema.SkipSanitize(schema.String()))),
		schema.Field("display_name", schema.Nullable(schema.String())),
	)
}

func (Service) Map(cfg map[string]any) (*datasource.Fields, error) {
	owner, _ := cfg["repo_owner"].(string)
	repo, _ := cfg["repo_name"].(string)
	ref, _ := cfg["ref"].(string)
	name, _ := cfg["display_name"].(string)
	if name == "" {
		name = owner + "/" + repo
	}
	f := &datasource.Fields{
		DisplayName: name,
		Endpoint:    fmt.Sprintf("%s/repos/%s/%s", APIBase, owner, repo),
		ImageURL:    fmt.Sprintf("https://github.com/%s.png", owner),
		Headers: map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		Extra: map[string]any{"ref": ref},
	}
	if tok, _ := cfg["token"].(string); tok != "" {
		f.Auth = []authplugins.Config{{Type: "bearer", Params: map[string]interface{}{"token": tok}}}
	}
	return f, nil
}

// FilePath normalizes a requested file path. Paths without an extension
// get .md appended.
func FilePath(p string) string {
	p = strings.Trim(p, "/")
	if path.Ext(p) == "" {
		p += ".md"
	}
	return p
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func contentsURL(ds *datasource.DataSource, p string) string {
	ref, _ := ds.Extra("ref").(string)
	u := ds.Endpoint() + "/contents"
	if p != "" {
		u += "/" + escapePath(p)
	}
	return u + "?ref=" + url.QueryEscape(ref)
}

func (Service) Queries(ds *datasource.DataSource) ([]query.Query, error) {
	file := &query.HTTPQuery{
		QueryName: "github_file",
		Source:    ds,
		Inputs: query.InputSchema{
			{Key: "file_path", Name: "File path", Type: query.InputString, Required: true},
		},
		Output: &query.OutputSchema{Fields: []query.OutputField{
			{Key: "file_path", Name: "File path", Type: schema.KindString},
			{Key: "file_content", Name: "File content", Type: schema.KindMarkdown},
			{Key: "sha", Name: "SHA", Type: schema.KindString},
			{Key: "html_url", Name: "GitHub URL", Type: schema.KindButtonURL},
		}},
		EndpointFunc: func(vars query.Variables) (string, error) {
			p, _ := vars["file_path"].(string)
			return contentsURL(ds, FilePath(p)), nil
		},
		PreprocessFunc: decodeFile,
	}

	list := &query.HTTPQuery{
		QueryName: "github_list_files",
		Source:    ds,
		Inputs: query.InputSchema{
			{Key: "directory", Name: "Directory", Type: query.InputString, DefaultValue: ""},
			{Key: "file_extension", Name: "File extension", Type: query.InputString, DefaultValue: ".md"},
		},
		Output: &query.OutputSchema{IsCollection: true, Fields: []query.OutputField{
			{Key: "name", Name: "File name", Type: schema.KindString},
			{Key: "file_path", Name: "File path", Path: "$.path", Type: schema.KindString},
			{Key: "sha", Name: "SHA", Type: schema.KindString},
			{Key: "size", Name: "Size", Type: schema.KindInteger},
			{Key: "html_url", Name: "GitHub URL", Type: schema.KindButtonURL},
		}},
		EndpointFunc: func(vars query.Variables) (string, error) {
			dir, _ := vars["directory"].(string)
			return contentsURL(ds, strings.Trim(dir, "/")), nil
		},
		PreprocessFunc: filterFiles,
	}
	return []query.Query{file, list}, nil
}

func decodeFile(raw any, _ query.Variables) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a file object, got %T", raw)
	}
	out := map[string]any{
		"file_path": m["path"],
		"sha":       m["sha"],
		"html_url":  m["html_url"],
	}
	content, _ := m["content"].(string)
	if enc, _ := m["encoding"].(string); enc == "base64" {
		b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode file content: %w", err)
		}
		content = string(b)
	}
	out["file_content"] = content
	return out, nil
}

func filterFiles(raw any, vars query.Variables) (any, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a directory listing, got %T", raw)
	}
	ext, _ := vars["file_extension"].(string)
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok || m["type"] != "file" {
			continue
		}
		if name, _ := m["name"].(string); ext != "" && !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
