package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func newRouter(s *store, log *slog.Logger) *gin.Engine {
	r := gin.Default()
	registerAPIRoutes(r, s, log)
	registerHTMLRoutes(r, s, log)
	return r
}

func prJSON(key string, pr *pullRequest) gin.H {
	return gin.H{
		"number":          pr.Number,
		"html_url":        fmt.Sprintf("http://localhost:9090/%s/pull/%d", key, pr.Number),
		"title":           pr.Title,
		"body":            pr.Body,
		"state":           pr.State,
		"merged":          pr.Merged,
		"mergeable":       pr.Mergeable,
		"mergeable_state": pr.MergeableState,
		"head":            gin.H{"ref": pr.Head},
		"base":            gin.H{"ref": pr.Base},
	}
}

//nolint:gocognit // one closure per endpoint, flat
func registerAPIRoutes(r *gin.Engine, s *store, log *slog.Logger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/repos/:owner/:repo", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		if !s.repoExists(owner, repo) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":           repo,
			"full_name":      owner + "/" + repo,
			"default_branch": "main",
		})
	})

	// Contents API: a single file object for exact matches, a listing array
	// for directories, 404 otherwise.
	r.GET("/repos/:owner/:repo/contents/*path", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		path := strings.Trim(c.Param("path"), "/")

		if content, ok := s.getFile(key, path); ok {
			c.JSON(http.StatusOK, gin.H{
				"type":     "file",
				"name":     path[strings.LastIndex(path, "/")+1:],
				"path":     path,
				"sha":      fakeSHA(content),
				"size":     len(content),
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
				"encoding": "base64",
			})
			return
		}
		if entries := s.listDir(key, path); len(entries) > 0 {
			c.JSON(http.StatusOK, entries)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("path %q not found in %s", path, key)})
	})

	// Git data API, the write path of a proposal.
	r.GET("/repos/:owner/:repo/git/ref/*ref", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		ref := strings.Trim(c.Param("ref"), "/")
		if !strings.HasPrefix(ref, "refs/") {
			ref = "refs/" + ref
		}
		sha, ok := s.getRef(key, ref)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ref":    ref,
			"object": gin.H{"type": "commit", "sha": sha},
		})
	})

	r.GET("/repos/:owner/:repo/git/commits/:sha", func(c *gin.Context) {
		commit, ok := s.getCommit(c.Param("sha"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sha":     commit.SHA,
			"message": commit.Message,
			"tree":    gin.H{"sha": commit.TreeSHA},
		})
	})

	r.POST("/repos/:owner/:repo/git/blobs", func(c *gin.Context) {
		var req struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		data, err := decodeBlob(req.Content, req.Encoding)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "content is not valid base64"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"sha": s.createBlob(data)})
	})

	r.POST("/repos/:owner/:repo/git/trees", func(c *gin.Context) {
		var req struct {
			BaseTree string      `json:"base_tree"`
			Tree     []treeEntry `json:"tree"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"sha": s.createTree(req.Tree)})
	})

	r.POST("/repos/:owner/:repo/git/commits", func(c *gin.Context) {
		var req struct {
			Message string   `json:"message"`
			Tree    string   `json:"tree"`
			Parents []string `json:"parents"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"sha": s.createCommit(req.Message, req.Tree, req.Parents)})
	})

	r.POST("/repos/:owner/:repo/git/refs", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		var req struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if err := s.createRef(key, req.Ref, req.SHA); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"ref":    req.Ref,
			"object": gin.H{"type": "commit", "sha": req.SHA},
		})
	})

	// Pull requests.
	r.POST("/repos/:owner/:repo/pulls", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		var req struct {
			Title string `json:"title"`
			Body  string `json:"body"`
			Head  string `json:"head"`
			Base  string `json:"base"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		pr, err := s.createPR(key, req.Title, req.Body, req.Head, req.Base)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		log.Info("PR created", "repo", key, "number", pr.Number, "title", pr.Title)
		c.JSON(http.StatusCreated, prJSON(key, pr))
	})

	r.GET("/repos/:owner/:repo/pulls/:number", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		num, err := strconv.Atoi(c.Param("number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid PR number"})
			return
		}
		pr := s.getPR(key, num)
		if pr == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
			return
		}
		c.JSON(http.StatusOK, prJSON(key, pr))
	})

	r.GET("/repos/:owner/:repo/pulls", func(c *gin.Context) {
		key := c.Param("owner") + "/" + c.Param("repo")
		prs := s.listPRs(key)
		out := make([]gin.H, 0, len(prs))
		for i := range prs {
			out = append(out, prJSON(key, &prs[i]))
		}
		c.JSON(http.StatusOK, out)
	})
}

func registerHTMLRoutes(r *gin.Engine, s *store, log *slog.Logger) {
	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, renderDashboard(s.allPRs()))
	})

	r.GET("/:owner/:repo/pull/:number", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		num, err := strconv.Atoi(c.Param("number"))
		if err != nil {
			c.String(http.StatusBadRequest, "invalid PR number")
			return
		}
		pr := s.getPR(owner+"/"+repo, num)
		if pr == nil {
			c.String(http.StatusNotFound, "pull request not found")
			return
		}
		changed, deleted := s.prDelta(pr.CommitSHA)
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, renderPRPage(owner, repo, pr, changed, deleted))
	})

	r.POST("/:owner/:repo/pull/:number/merge", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		num, err := strconv.Atoi(c.Param("number"))
		if err != nil {
			c.String(http.StatusBadRequest, "invalid PR number")
			return
		}
		if pr := s.merge(owner+"/"+repo, num); pr == nil {
			c.String(http.StatusNotFound, "pull request not found or not open")
			return
		}
		log.Info("PR merged", "owner", owner, "repo", repo, "number", num)
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/%s/%s/pull/%d", owner, repo, num))
	})

	r.POST("/:owner/:repo/pull/:number/close", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		num, err := strconv.Atoi(c.Param("number"))
		if err != nil {
			c.String(http.StatusBadRequest, "invalid PR number")
			return
		}
		if pr := s.close(owner+"/"+repo, num); pr == nil {
			c.String(http.StatusNotFound, "pull request not found or not open")
			return
		}
		log.Info("PR closed", "owner", owner, "repo", repo, "number", num)
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/%s/%s/pull/%d", owner, repo, num))
	})
}

// --- HTML templates ---

func prStateLabel(pr *pullRequest) (color, label string) {
	switch {
	case pr.Merged:
		return "#a371f7", "Merged"
	case pr.State == "closed":
		return "#f85149", "Closed"
	case pr.MergeableState == "dirty":
		return "#d29922", "Conflicts"
	default:
		return "#3fb950", "Open"
	}
}

func renderDashboard(all map[string][]pullRequest) string {
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	openCount := 0
	var rows strings.Builder
	for _, key := range keys {
		for i := range all[key] {
			pr := &all[key][i]
			if pr.State == "open" {
				openCount++
			}
			color, label := prStateLabel(pr)
			rows.WriteString(fmt.Sprintf(`
        <tr>
          <td style="padding:12px 16px;border-bottom:1px solid #21262d;">
            <a href="/%s/pull/%d" style="color:#58a6ff;text-decoration:none;font-weight:600;">%s</a>
            <span style="margin-left:8px;font-size:12px;color:#8b949e;">%s</span>
          </td>
          <td style="padding:12px 16px;border-bottom:1px solid #21262d;font-family:monospace;font-size:13px;color:#8b949e;">%s</td>
          <td style="padding:12px 16px;border-bottom:1px solid #21262d;">
            <span style="display:inline-block;padding:2px 10px;border-radius:12px;font-size:12px;font-weight:500;background:%s22;color:%s;border:1px solid %s44;">%s</span>
          </td>
        </tr>`, key, pr.Number, pr.Title, key, pr.Head, color, color, color, label))
		}
	}

	body := rows.String()
	if body == "" {
		body = `<tr><td colspan="3" style="padding:40px 16px;text-align:center;color:#8b949e;">No pull requests yet. Submit a proposal from the Scribe editor.</td></tr>`
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>Mock GitHub</title>
  <meta http-equiv="refresh" content="3">
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <div style="display:flex;align-items:center;justify-content:space-between;margin-bottom:24px;">
      <h1 style="font-size:20px;font-weight:600;">Pull Requests</h1>
      <span style="font-size:13px;color:#8b949e;">%d open</span>
    </div>
    <table style="width:100%%;border-collapse:collapse;background:#161b22;border:1px solid #30363d;border-radius:6px;overflow:hidden;">
      <thead>
        <tr style="background:#161b22;">
          <th style="padding:12px 16px;text-align:left;font-size:12px;color:#8b949e;border-bottom:1px solid #21262d;font-weight:500;">Title</th>
          <th style="padding:12px 16px;text-align:left;font-size:12px;color:#8b949e;border-bottom:1px solid #21262d;font-weight:500;">Branch</th>
          <th style="padding:12px 16px;text-align:left;font-size:12px;color:#8b949e;border-bottom:1px solid #21262d;font-weight:500;">Status</th>
        </tr>
      </thead>
      <tbody>%s</tbody>
    </table>
  </div>
</body>
</html>`, openCount, body)
}

func renderPRPage(owner, repo string, pr *pullRequest, changed map[string]string, deleted map[string]bool) string {
	color, label := prStateLabel(pr)

	actions := fmt.Sprintf(`
    <div style="display:flex;gap:8px;margin-top:24px;">
      <form method="POST" action="/%s/%s/pull/%d/merge">
        <button type="submit" style="padding:8px 20px;background:#238636;color:#fff;border:1px solid #2ea04366;border-radius:6px;font-size:14px;font-weight:500;cursor:pointer;">
          Merge pull request
        </button>
      </form>
      <form method="POST" action="/%s/%s/pull/%d/close">
        <button type="submit" style="padding:8px 20px;background:#21262d;color:#f85149;border:1px solid #f8514966;border-radius:6px;font-size:14px;font-weight:500;cursor:pointer;">
          Close
        </button>
      </form>
    </div>`, owner, repo, pr.Number, owner, repo, pr.Number)

	if pr.Merged {
		actions = `<div style="margin-top:24px;padding:12px 16px;background:#a371f722;border:1px solid #a371f744;border-radius:6px;color:#a371f7;font-size:14px;">Pull request successfully merged.</div>`
	} else if pr.State == "closed" {
		actions = `<div style="margin-top:24px;padding:12px 16px;background:#f8514922;border:1px solid #f8514944;border-radius:6px;color:#f85149;font-size:14px;">Pull request closed without merging.</div>`
	}

	paths := make([]string, 0, len(changed)+len(deleted))
	for p := range changed {
		paths = append(paths, p)
	}
	for p := range deleted {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var files strings.Builder
	for _, p := range paths {
		body := changed[p]
		if deleted[p] {
			body = "(deleted)"
		}
		files.WriteString(fmt.Sprintf(`
      <div style="margin-bottom:2px;">
        <div style="padding:10px 16px;background:#1c2128;border:1px solid #30363d;border-radius:6px 6px 0 0;font-size:13px;">
          <code style="color:#79c0ff;">%s</code>
        </div>
        <pre style="margin:0;padding:16px;background:#0d1117;border:1px solid #30363d;border-top:none;border-radius:0 0 6px 6px;font-size:12px;color:#8b949e;overflow-x:auto;white-space:pre-wrap;">%s</pre>
      </div>`, p, body))
	}

	filesHTML := ""
	if len(paths) > 0 {
		filesHTML = fmt.Sprintf(`
    <div style="margin-top:24px;">
      <h3 style="font-size:16px;font-weight:500;margin-bottom:12px;color:#c9d1d9;">Files changed (%d)</h3>
      %s
    </div>`, len(paths), files.String())
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>%s - Mock GitHub</title>
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; }
    a { color:#58a6ff; text-decoration:none; }
    a:hover { text-decoration:underline; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <div style="margin-bottom:24px;font-size:13px;">
      <a href="/">All pull requests</a>
    </div>

    <div style="display:flex;align-items:flex-start;gap:12px;margin-bottom:16px;">
      <h1 style="font-size:24px;font-weight:400;">
        <span style="color:#c9d1d9;">%s</span>
        <span style="color:#8b949e;font-weight:300;"> #%d</span>
      </h1>
    </div>

    <div style="margin-bottom:24px;">
      <span style="display:inline-block;padding:4px 12px;border-radius:16px;font-size:13px;font-weight:500;background:%s22;color:%s;border:1px solid %s44;">%s</span>
      <span style="margin-left:8px;font-size:13px;color:#8b949e;">%s/%s</span>
    </div>

    <div style="background:#161b22;border:1px solid #30363d;border-radius:6px;padding:20px;">
      <div style="font-size:14px;color:#c9d1d9;line-height:1.6;white-space:pre-wrap;">%s</div>
      <div style="margin-top:16px;padding-top:16px;border-top:1px solid #21262d;font-size:13px;color:#8b949e;">
        <code style="background:#1c2128;padding:2px 6px;border-radius:4px;color:#79c0ff;">%s</code>
        &rarr;
        <code style="background:#1c2128;padding:2px 6px;border-radius:4px;color:#79c0ff;">%s</code>
      </div>
    </div>

    %s
    %s
  </div>
</body>
</html>`, pr.Title, pr.Title, pr.Number,
		color, color, color, label,
		owner, repo,
		pr.Body, pr.Head, pr.Base, actions, filesHTML)
}
