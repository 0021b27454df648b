package version

// Version is the application version.
const Version = "v0.9.2"
