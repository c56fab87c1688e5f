// Package rowio reads and writes row files, the host-side record stream
// used by the canonxml CLI.
//
// A row file is a sequence of JSON values. The first is the schema header:
//
//	{"fields":[{"name":"id","type":"integer","trim":"none"},{"name":"payload","type":"text","trim":"none"}]}
//
// Every following value is a JSON array aligned to that schema:
//
//	[1,"<doc>test &#38;</doc>"]
//
// Writers emit one value per line with HTML escaping disabled. Error files
// hold one ErrorRow object per line.
package rowio
