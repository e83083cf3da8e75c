// Package annotation keeps the lines and rectangles a client has placed on
// its images during a session.
//
// Each object has a UUID and a name. Names default to "Line1", "Line2", ...
// and "Rectangle1", "Rectangle2", ... and are unique ignoring case, so either
// the ID or the name can be used to refer to an object.
//
// An object's Purpose decides what the server reports for it: measurement
// objects report only their geometry, point-detection lines add the
// transitions along the line, and corner-detection rectangles add the corners
// found inside the rectangle.
//
// Nothing is persisted; a Store lives as long as the server process.
package annotation
