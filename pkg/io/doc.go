// Package io provides JSON import and export for dependency graphs.
//
// # JSON Format
//
// Nodes are identified by their "Type:ID" key. An edge points from the
// dependent object to the object it depends on:
//
//	{
//	  "nodes": [
//	    {"id": "ContentType:article", "type": "ContentType", "name": "Article", "included": true, "position": 1},
//	    {"id": "Keyword:k1", "type": "Keyword", "name": "Topics", "position": 0}
//	  ],
//	  "edges": [
//	    {"from": "ContentType:article", "to": "Keyword:k1"}
//	  ]
//	}
//
// When an install ordering is supplied to [WriteJSON], each node carries its
// zero-based "position" in the order and nodes where a cycle was broken are
// marked "broken". Both fields are informational and ignored by [ReadJSON].
//
// Edges of a node are written in the order its handler reported the
// children, and [ReadJSON] rebuilds each dependency's child list in that same
// order, so an exported graph re-imports identically.
package io
