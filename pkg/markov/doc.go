/*
Package markov provides an in-memory, first-order Markov chain of word
transitions, together with the tools to build it from tokenized lines,
persist it in a compact binary snapshot, and walk it to generate short text.

A Chain is created by a Builder, which assigns every new token the next
vocabulary index in first-seen order, records which tokens opened and closed
an input line, and counts every observed token-to-token transition. Once
built, a Chain is immutable and can be shared by any number of concurrent
Generate calls.

The binary layout written by Encode and read by Decode is a stable contract;
see codec.go for the exact byte format.
*/
package markov
