// Package rewrite implements the gateway's rewrite rule table: path patterns
// with named captures (":name" for one segment, ":name*" for the remaining
// segments) mapped to destination URL templates on a fixed upstream origin.
//
// Rules are compiled and validated once at startup and evaluated per request
// in declaration order, first match wins. Captured remainders are substituted
// into the destination with exact segment-joining semantics: no double
// slashes and no lost trailing segments.
package rewrite
