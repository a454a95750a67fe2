// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package ytdl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validator validates if a string is eligible as a download URL or output path
type Validator interface {
	IsValid(text string) bool
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
	check func(string) bool
}

// NewValidator creates a new Validator. Empty expressions are ignored.
// Block expressions win over allow expressions; with no allow expressions
// everything not blocked is valid.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}

	var err error
	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

// NewURLValidator is NewValidator that also requires an absolute http(s) URL
func NewURLValidator(allow, block []string) (Validator, error) {
	v, err := NewValidator(allow, block)
	if err != nil {
		return nil, err
	}
	v.(*validator).check = isHTTPURL
	return v, nil
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func isHTTPURL(text string) bool {
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (v *validator) IsValid(text string) bool {
	if v.check != nil && !v.check(text) {
		return false
	}
	for _, e := range v.block {
		if e.MatchString(text) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(text) {
			return true
		}
	}
	return false
}
