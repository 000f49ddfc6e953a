/*
Package query is an in-memory evaluator for the subset of the MongoDB query
language docstore's non-Mongo backends need.

Supported filters: implicit equality (with array membership), $eq, $ne, $gt,
$gte, $lt, $lte, $in, $nin, $exists, $not, $size, $and, $or, $nor, dotted paths.

Supported updates: $set, $unset, $inc, $push (with $each), $pull. A document
without operators is applied as $set, as MongoDB ODMs do.

Supported pipeline stages: $match, $sort, $skip, $limit, $project, $unwind,
$count, $group ($sum, $avg, $min, $max, $first, $last, $push).

Anything else fails with an errors.ValidationError rather than being ignored.
*/
package query
