/*
Package chainstore keeps named markov.Chain snapshots in a SQLite database.

Each chain is stored as its binary snapshot together with a few summary
columns, so models can be listed without decoding them. Saving under an
existing name replaces the previous snapshot as a whole; a stored chain is
never modified in place.
*/
package chainstore
