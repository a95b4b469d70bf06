// Package builtin provides the functions available inside {{...}} templates.
//
// Available functions:
//   - uuid(): a random UUID v4
//   - now(), date(layout), timestamp(), timestampMs()
//   - random(min, max): random integer in range
//   - randomString(length), randomAlphanumeric(length), randomEmail()
//   - fixture(kind), fixture(kind, field): generated test data
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value), json(value)
//
// Random values come from a fixture.Generator, so emails use the same
// allowed domains and uniqueness tokens as generated fixtures.
package builtin
