// Package fixture generates test data with a fixed shape and random values.
//
// Every fixture carries a Token drawn from a version 4 UUID (122 random
// bits), and identity-bearing fields such as usernames and emails embed it,
// so fixtures generated anywhere in a process do not collide. Field choices
// such as first names or email domains come from a seedable source guarded
// by a mutex; a Generator is safe for concurrent use.
package fixture
