// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engagement

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/gazeflow/dom"
)

// fingerprintDomain separates engagement fingerprints from any other
// BLAKE3 use of the same content.
const fingerprintDomain = "gazeflow.engagement.fingerprint.v1\x00"

// Fingerprint identifies node by its content: images by alt text and
// source, everything else by visible text with the stripped tags
// removed. Returns "" for elements with no identifying content.
func Fingerprint(node *dom.Node, stripped map[string]bool) string {
	var material string
	if node.Tag == "img" {
		alt, source := node.Attribute("alt"), node.Attribute("src")
		if alt == "" && source == "" {
			return ""
		}
		material = "img\x00" + alt + "\x00" + source
	} else {
		text := node.TextExcluding(stripped)
		if text == "" {
			return ""
		}
		material = "text\x00" + text
	}
	sum := blake3.Sum256([]byte(fingerprintDomain + material))
	return hex.EncodeToString(sum[:16])
}
