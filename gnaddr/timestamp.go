/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */
package gnaddr

// PVTimestamp is a position-vector timestamp: milliseconds since 2004-01-01
// TAI, wrapping at 2^32 (roughly every 49.7 days).
type PVTimestamp uint32

// halfTstMax is the wrap-around threshold used by freshness comparison,
// mirroring original_source's compare_position_vector_freshness half_tst_max.
const halfTstMax = 0x8000_0000

// FresherThan reports whether l is a fresher timestamp than r, handling
// wrap-around per spec: l is fresher than r iff
// (l>r && l-r<=2^31) || (r>l && r-l>2^31).
func (l PVTimestamp) FresherThan(r PVTimestamp) bool {
	if l > r {
		return uint32(l-r) <= halfTstMax
	}
	if r > l {
		return uint32(r-l) > halfTstMax
	}
	return false
}
