package statecache

// Version of the statecache module.
const Version = "0.1.0"
