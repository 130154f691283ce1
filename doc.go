// bech32-vectors prints the bech32 reference test vectors as JSON.
//
// The vectors live in the reference implementation's Python test module
// (ref/python/tests.py in github.com/sipa/bech32, checked out as the git
// submodule third_party/sipa/bech32). bech32-vectors reads that module's
// top-level assignments without running an interpreter and prints the seven
// collections as a single JSON object on stdout, so test suites written in
// other languages can share one canonical copy of the vectors.
//
// Example:
//
//	git submodule update --init third_party/sipa/bech32
//	go run . > vectors.json
//
// Output (abbreviated):
//
//	{"VALID_BECH32": ["A12UEL5L", ...], "VALID_BECH32M": [...], "INVALID_BECH32": [...],
//	 "INVALID_BECH32M": [...], "VALID_ADDRESS": [["BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4",
//	 "0014751e76e8199196d454941c45d1b3a323f1433bd6"], ...], "INVALID_ADDRESS": [...],
//	 "INVALID_ADDRESS_ENC": [["BC", 0, 20], ...]}
//
// The names, their order and the location of the reference module are fixed
// by manifest.yaml, embedded at build time. Either the whole document is
// written, or nothing is written to stdout and the exit status is non-zero.
package main
