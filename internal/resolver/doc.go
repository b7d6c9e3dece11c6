// Package resolver finds a speaker by the name a user typed.
//
// Names are matched against the cached speakers with increasingly loose
// rules, and the first rule that matches anything wins:
//
//  1. exact
//  2. case-insensitive (Unicode case folding)
//  3. case-insensitive with ‘ ’ and ʼ treated as '
//  4. prefix of the stored name
//  5. substring of the stored name
//
// A query that parses as an IPv4 address is returned as-is and never looked
// up. Hidden devices (bridges, boosts, satellites) are skipped by every rule
// when visibility is required.
//
// Partial matches can be ambiguous: "Reception" matches both "Front
// Reception" and "Rear Reception". The first in stored order wins, and the
// cache stores speakers sorted by household, name, then address, so the
// choice is stable. Matches returns all of them so callers can warn.
package resolver
