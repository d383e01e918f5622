// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps the visited-page history behind the history
// view and looks up favicons for it.
//
// [Store] is a SQLite table of visits, one row per URL, updated each
// time the tab tracker records a completed navigation. [Store.Search]
// returns the most recent visits first.
//
// [Favicons] resolves a page URL to an icon: it consults a cache kept
// in the same database, fetches through a [FaviconSource] on a miss,
// and falls back to a built-in icon whenever nothing usable comes
// back. Cached icons are stored zstd-compressed when that makes them
// smaller.
package history
