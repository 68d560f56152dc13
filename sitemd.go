// Package sitemd converts websites and uploaded documents into Markdown.
// It crawls a site to a bounded depth, converts each page, combines the
// pages into a single document, and reports progress through an
// asynchronous task interface.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, sqlite/, redis/).
package sitemd
