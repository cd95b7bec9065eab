/*
Package corpus turns a semicolon-delimited corpus into markov chains.

Rows are read with ReadRows, which keeps only the free-text columns; lines are
cleaned and filtered by Normalize over a small worker pool; the Pipeline then
tokenizes the surviving lines and feeds them, in their original order, to a
markov.Builder.
*/
package corpus
