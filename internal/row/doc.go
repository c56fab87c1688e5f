// Package row provides the record model shared by every stage package.
//
// This package contains type definitions and the JSON value codec only. All
// other internal packages import row; row imports nothing internal.
//
// Key design constraints:
//   - A Record is positionally aligned to its Schema; names live on the Schema
//   - Values are sealed: only Text, Integer, Number, Boolean and Binary
//     implement Value, and a nil Value is a null
//   - Schemas are treated as immutable once handed to a stage; Append returns
//     a copy and never touches the receiver
package row
