// Package task runs units of background work on a bounded pool of workers.
// The deck builder uses it to assemble cards concurrently while the sentence
// producer keeps feeding the queue.
package task
